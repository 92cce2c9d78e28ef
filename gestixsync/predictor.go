package gestixsync

import (
	"sort"
	"strings"
)

// Downstream stages the predictor can fall back to when no later area
// answers the question.
const (
	StageFinishing    = "finishing"
	StageInstallation = "installation"
	StageWarehouse    = "warehouse"
)

// terminationKeywords on a later candidate's variant/material text mean
// the document ends in generic finishing work rather than another area.
var terminationKeywords = []string{"extra", "service", "materials"}

// installationKeywords on the current candidate's own extras mean the
// job leaves the shop for on-site installation.
var installationKeywords = []string{"installation", "install", "setup", "mounting"}

// candidate is one future ProductionOrder: an (area, material group)
// pair with at least one item.
type candidate struct {
	Area  *Area
	Group *MaterialGroup
}

// orderCandidates flattens a document into its globally ordered
// candidate list: areas by priority ascending (encounter order breaks
// ties), groups in encounter order, empty groups skipped.
func orderCandidates(doc *Document) []candidate {
	areas := doc.Areas()
	sort.SliceStable(areas, func(i, j int) bool {
		return areas[i].Priority < areas[j].Priority
	})

	var cands []candidate
	for _, area := range areas {
		for _, group := range area.Groups() {
			if !group.hasItems() {
				continue
			}
			cands = append(cands, candidate{Area: area, Group: group})
		}
	}
	return cands
}

// nextService predicts the downstream stage for candidate i by scanning
// forward through the document's ordered candidates:
//   - the first later candidate in a different area wins;
//   - else a later candidate whose variant/material text carries a
//     termination keyword routes to finishing;
//   - an exhausted scan falls back to the candidate's own extras: an
//     installation keyword routes to installation;
//   - otherwise the order ends in the warehouse.
func nextService(cands []candidate, i int) string {
	current := cands[i]

	for j := i + 1; j < len(cands); j++ {
		later := cands[j]
		if later.Area.Name != current.Area.Name {
			return later.Area.Name
		}
		if matchesAny(later.Group.Variant, terminationKeywords) || matchesAny(later.Group.Material, terminationKeywords) {
			return StageFinishing
		}
	}

	for _, extra := range current.Group.Extras {
		if matchesAny(extra.Description, installationKeywords) {
			return StageInstallation
		}
	}
	return StageWarehouse
}

func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
