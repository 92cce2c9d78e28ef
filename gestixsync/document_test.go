package gestixsync

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

type mapResolver map[string]AreaInfo

func (m mapResolver) Resolve(groupCode, stockCode string) (AreaInfo, bool) {
	info, ok := m[strings.ToUpper(strings.TrimSpace(groupCode))]
	return info, ok
}

func testResolver() mapResolver {
	return mapResolver{
		"PRT": {Name: "PRINT", Priority: 1, LeadDays: 2},
		"FIN": {Name: "FINISH", Priority: 2, LeadDays: 1},
		"EMB": {Name: "EMBROIDERY", Priority: 3, LeadDays: 3},
	}
}

func productiveSub(link, copies, measure string) gestixSubLine {
	return gestixSubLine{Copies: json.Number(copies), Measure: json.Number(measure), FileLink: link}
}

func TestBuildDocuments_GroupsByDocumentAndArea(t *testing.T) {
	orders := []rawOrder{
		{
			Header: gestixOrderHeader{InvoiceNumber: 501, DocNumber: "1001", ClientName: "Acme", ClientCode: "C9"},
			Lines: []gestixOrderLine{
				{GroupCode: "PRT", ArticleCode: "A1", Name: "Vinyl", Unit: "m",
					SubLines: []gestixSubLine{productiveSub("f1", "2", "1.5")}},
				{GroupCode: "FIN", ArticleCode: "A2", Name: "Lamination",
					Quantity: json.Number("1"), Total: json.Number("30")},
			},
		},
	}

	docs := BuildDocuments(orders, testResolver())
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Key != "1001" {
		t.Fatalf("expected document key 1001, got %s", doc.Key)
	}
	if doc.Invoice != 501 {
		t.Fatalf("expected invoice 501, got %d", doc.Invoice)
	}

	areas := doc.Areas()
	if len(areas) != 2 {
		t.Fatalf("expected 2 areas, got %d", len(areas))
	}
	if areas[0].Name != "PRINT" || areas[1].Name != "FINISH" {
		t.Fatalf("unexpected area encounter order: %s, %s", areas[0].Name, areas[1].Name)
	}

	printGroups := areas[0].Groups()
	if len(printGroups) != 1 || printGroups[0].ArticleCode != "A1" {
		t.Fatalf("unexpected PRINT groups: %+v", printGroups)
	}
	if len(printGroups[0].Productive) != 1 {
		t.Fatalf("expected 1 productive item, got %d", len(printGroups[0].Productive))
	}

	finishGroups := areas[1].Groups()
	if len(finishGroups) != 1 || len(finishGroups[0].Extras) != 1 {
		t.Fatalf("expected 1 extra item in FINISH, got %+v", finishGroups)
	}
}

func TestBuildDocuments_DocumentKeyFallsBackToInvoice(t *testing.T) {
	orders := []rawOrder{
		{
			Header: gestixOrderHeader{InvoiceNumber: 777},
			Lines: []gestixOrderLine{
				{GroupCode: "PRT", ArticleCode: "A1",
					SubLines: []gestixSubLine{productiveSub("f1", "1", "1")}},
			},
		},
	}
	docs := BuildDocuments(orders, testResolver())
	if len(docs) != 1 || docs[0].Key != "777" {
		t.Fatalf("expected document keyed by invoice number, got %+v", docs)
	}
}

func TestBuildDocuments_UnmappedLineIsDroppedSilently(t *testing.T) {
	orders := []rawOrder{
		{
			Header: gestixOrderHeader{InvoiceNumber: 600, DocNumber: "2001"},
			Lines: []gestixOrderLine{
				{GroupCode: "PRT", ArticleCode: "A1", SubLines: []gestixSubLine{productiveSub("f1", "1", "2")}},
				{GroupCode: "XXX", ArticleCode: "A9", SubLines: []gestixSubLine{productiveSub("f9", "3", "1")}},
				{GroupCode: "FIN", ArticleCode: "A2", Quantity: json.Number("1"), Total: json.Number("10")},
			},
		},
	}
	docs := BuildDocuments(orders, testResolver())
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	cands := orderCandidates(docs[0])
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates after dropping the unmapped line, got %d", len(cands))
	}
	for _, cand := range cands {
		if cand.Group.ArticleCode == "A9" {
			t.Fatalf("unmapped line leaked into candidates: %+v", cand.Group)
		}
	}
}

func TestBuildDocuments_MissingArticleCodeUsesGenericGroup(t *testing.T) {
	orders := []rawOrder{
		{
			Header: gestixOrderHeader{InvoiceNumber: 601, DocNumber: "2002"},
			Lines: []gestixOrderLine{
				{GroupCode: "PRT", Quantity: json.Number("2"), Total: json.Number("5")},
			},
		},
	}
	docs := BuildDocuments(orders, testResolver())
	groups := docs[0].Areas()[0].Groups()
	if len(groups) != 1 || groups[0].ArticleCode != genericArticleCode {
		t.Fatalf("expected GENERIC group, got %+v", groups)
	}
}

func TestApplyObservations_LastMatchWins(t *testing.T) {
	area := &Area{Name: "PRINT"}
	applyObservations(area, "Ink: cyan\nsomething else\nPickup: courier")
	applyObservations(area, "ink: magenta")
	if area.InkNotes != "magenta" {
		t.Fatalf("expected last ink match to win, got %q", area.InkNotes)
	}
	if area.RemovalNotes != "courier" {
		t.Fatalf("expected pickup note, got %q", area.RemovalNotes)
	}
}

func TestClassifyLine_DecisionTable(t *testing.T) {
	cases := []struct {
		name       string
		line       gestixOrderLine
		productive int
		reference  int
		extras     int
	}{
		{
			name:   "no sub-lines with non-zero total becomes extra",
			line:   gestixOrderLine{Description: "setup fee", Quantity: json.Number("1"), Total: json.Number("25")},
			extras: 1,
		},
		{
			name: "no sub-lines with zero total is ignored",
			line: gestixOrderLine{Description: "noop", Total: json.Number("0")},
		},
		{
			name: "reference keyword with file wins over extra",
			line: gestixOrderLine{SubLines: []gestixSubLine{
				{Copies: json.Number("1"), FileLink: "s.pdf", Notes: "client sketch"},
			}},
			reference: 1,
		},
		{
			name: "reference keyword without file matches no rule and is dropped",
			line: gestixOrderLine{SubLines: []gestixSubLine{
				{Copies: json.Number("2"), Notes: "logo placement"},
			}},
		},
		{
			name: "link with positive copies is productive",
			line: gestixOrderLine{SubLines: []gestixSubLine{
				{Copies: json.Number("3"), Measure: json.Number("0.5"), FileLink: "art.pdf", Notes: "front"},
			}},
			productive: 1,
		},
		{
			name: "no link and zero copies is dropped",
			line: gestixOrderLine{SubLines: []gestixSubLine{
				{Copies: json.Number("0"), Notes: "empty"},
			}},
		},
	}

	for _, tc := range cases {
		group := &MaterialGroup{ArticleCode: "A1"}
		classifyLine(group, tc.line)
		if len(group.Productive) != tc.productive || len(group.Reference) != tc.reference || len(group.Extras) != tc.extras {
			t.Fatalf("%s: got productive=%d reference=%d extras=%d",
				tc.name, len(group.Productive), len(group.Reference), len(group.Extras))
		}
	}
}

func TestReferenceType_EmbroideryGuideBeforeGuide(t *testing.T) {
	if got := referenceType("attach embroidery guide here"); got != "embroidery_guide" {
		t.Fatalf("expected embroidery_guide, got %s", got)
	}
	if got := referenceType("cutting guide"); got != "cut" {
		t.Fatalf("expected cut, got %s", got)
	}
	if got := referenceType("nothing special"); got != "" {
		t.Fatalf("expected no reference type, got %s", got)
	}
}

func TestComputeMagnitude(t *testing.T) {
	length := &MaterialGroup{
		Unit: "m",
		Productive: []ProductiveItem{
			{Copies: decimal.NewFromInt(2), Measure: decimal.RequireFromString("1.5")},
		},
	}
	if got := computeMagnitude(length); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected linear magnitude 3, got %s", got)
	}

	pieces := &MaterialGroup{
		Unit: "pcs",
		Productive: []ProductiveItem{
			{Copies: decimal.NewFromInt(2), Measure: decimal.RequireFromString("1.5")},
		},
		Extras: []ExtraItem{{Quantity: decimal.NewFromInt(1)}},
	}
	if got := computeMagnitude(pieces); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected piece magnitude 3 (2 copies + 1 extra), got %s", got)
	}
}
