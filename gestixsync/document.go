package gestixsync

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/grafimark/shopfloor_backend/config"
	"bitbucket.org/grafimark/shopfloor_backend/models"
	"bitbucket.org/grafimark/shopfloor_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const genericArticleCode = "GENERIC"

// AreaInfo is the resolved internal area for one ERP group code.
type AreaInfo struct {
	Name     string
	Priority int
	LeadDays int
}

// AreaResolver maps a Gestix group code (or, failing that, a stock
// code) onto an internal production area.
type AreaResolver interface {
	Resolve(groupCode, stockCode string) (AreaInfo, bool)
}

type dbAreaResolver struct {
	db     *gorm.DB
	byCode map[string]AreaInfo
}

func newDBAreaResolver(db *gorm.DB) (*dbAreaResolver, error) {
	mappings, err := models.GetAreaMappings(db)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]AreaInfo, len(mappings))
	for _, m := range mappings {
		byCode[utils.NormalizeCode(m.ErpCode)] = AreaInfo{Name: m.Area, Priority: m.Priority, LeadDays: m.LeadDays}
	}
	return &dbAreaResolver{db: db, byCode: byCode}, nil
}

func (r *dbAreaResolver) Resolve(groupCode, stockCode string) (AreaInfo, bool) {
	if info, ok := r.byCode[utils.NormalizeCode(groupCode)]; ok {
		return info, true
	}
	// Secondary resolution: the article master may know which group the
	// stock code belongs to.
	stockCode = strings.TrimSpace(stockCode)
	if stockCode == "" {
		return AreaInfo{}, false
	}
	article, err := models.GetArticleByStockCode(r.db, stockCode)
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			config.LogError(config.GetLogger(), "gestixsync", "Resolve", "stock code lookup", stockCode, err)
		}
		return AreaInfo{}, false
	}
	info, ok := r.byCode[utils.NormalizeCode(article.ErpGroupCode)]
	return info, ok
}

// Document is the in-memory aggregation root for one Gestix order
// before flattening. It lives only for the duration of one cycle.
type Document struct {
	Key         string
	Invoice     int
	ClientName  string
	ClientCode  string
	CreatedAt   time.Time
	Description string
	Priority    string
	Notes       string

	areaKeys []string
	areas    map[string]*Area
}

// Area is one processing stage inside a document. Ink and removal
// notes accumulate here, last match wins.
type Area struct {
	Name         string
	Priority     int
	LeadDays     int
	InkNotes     string
	RemovalNotes string

	groupKeys []string
	groups    map[string]*MaterialGroup
}

// MaterialGroup collects the items of one article code within one area.
// StockCode and GroupCode come from the first line that opened the
// group; they seed auto-created article master rows.
type MaterialGroup struct {
	ArticleCode string
	StockCode   string
	GroupCode   string
	Material    string
	Variant     string
	Unit        string
	Productive  []ProductiveItem
	Reference   []ReferenceItem
	Extras      []ExtraItem
}

type ProductiveItem struct {
	FileLink string
	Copies   decimal.Decimal
	Measure  decimal.Decimal
}

type ReferenceItem struct {
	RefType  string
	FileLink string
	Notes    string
}

type ExtraItem struct {
	Description string
	Quantity    decimal.Decimal
}

func (g *MaterialGroup) hasItems() bool {
	return len(g.Productive) > 0 || len(g.Reference) > 0 || len(g.Extras) > 0
}

// Areas returns the document's areas in encounter order.
func (d *Document) Areas() []*Area {
	out := make([]*Area, 0, len(d.areaKeys))
	for _, k := range d.areaKeys {
		out = append(out, d.areas[k])
	}
	return out
}

// Groups returns the area's material groups in encounter order.
func (a *Area) Groups() []*MaterialGroup {
	out := make([]*MaterialGroup, 0, len(a.groupKeys))
	for _, k := range a.groupKeys {
		out = append(out, a.groups[k])
	}
	return out
}

func (d *Document) area(info AreaInfo) *Area {
	if a, ok := d.areas[info.Name]; ok {
		return a
	}
	a := &Area{
		Name:     info.Name,
		Priority: info.Priority,
		LeadDays: info.LeadDays,
		groups:   make(map[string]*MaterialGroup),
	}
	d.areas[info.Name] = a
	d.areaKeys = append(d.areaKeys, info.Name)
	return a
}

func (a *Area) group(line gestixOrderLine) *MaterialGroup {
	key := utils.NormalizeCode(line.ArticleCode)
	if key == "" {
		key = genericArticleCode
	}
	if g, ok := a.groups[key]; ok {
		return g
	}
	g := &MaterialGroup{
		ArticleCode: key,
		StockCode:   strings.TrimSpace(line.StockCode),
		GroupCode:   strings.TrimSpace(line.GroupCode),
		Material:    strings.TrimSpace(line.Name),
		Variant:     strings.TrimSpace(line.Variant),
		Unit:        strings.TrimSpace(line.Unit),
	}
	a.groups[key] = g
	a.groupKeys = append(a.groupKeys, key)
	return g
}

// BuildDocuments groups the fetched orders into documents. Lines whose
// area cannot be resolved are dropped with a warning; an unmapped line
// never blocks the rest of its document.
func BuildDocuments(orders []rawOrder, resolver AreaResolver) []*Document {
	logger := config.GetLogger()

	var keys []string
	docs := make(map[string]*Document)

	for _, order := range orders {
		key := strings.TrimSpace(order.Header.DocNumber)
		if key == "" {
			key = strconv.Itoa(order.Header.InvoiceNumber)
		}
		doc, ok := docs[key]
		if !ok {
			doc = &Document{
				Key:         key,
				Invoice:     order.Header.InvoiceNumber,
				ClientName:  strings.TrimSpace(order.Header.ClientName),
				ClientCode:  strings.TrimSpace(order.Header.ClientCode),
				CreatedAt:   parseTimeOrNow(order.Header.CreatedAt),
				Description: strings.TrimSpace(order.Header.Description),
				Priority:    strings.TrimSpace(order.Header.Priority),
				Notes:       strings.TrimSpace(order.Header.Notes),
				areas:       make(map[string]*Area),
			}
			docs[key] = doc
			keys = append(keys, key)
		}
		if order.Header.InvoiceNumber > doc.Invoice {
			doc.Invoice = order.Header.InvoiceNumber
		}

		for _, line := range order.Lines {
			info, ok := resolver.Resolve(line.GroupCode, line.StockCode)
			if !ok {
				logger.WithFields(logrus.Fields{
					"doc":        key,
					"group_code": line.GroupCode,
					"stock_code": line.StockCode,
				}).Warn("unmapped area; dropping line")
				continue
			}
			area := doc.area(info)
			applyObservations(area, line.Observations)
			classifyLine(area.group(line), line)
		}
	}

	out := make([]*Document, 0, len(keys))
	for _, k := range keys {
		out = append(out, docs[k])
	}
	return out
}

// applyObservations extracts "Ink: ..." and "Pickup: ..." annotations
// from free-text observations onto the area. Last match wins.
func applyObservations(area *Area, observations string) {
	for _, rawLine := range strings.Split(observations, "\n") {
		text := strings.TrimSpace(rawLine)
		lower := strings.ToLower(text)
		if strings.HasPrefix(lower, "ink:") {
			area.InkNotes = strings.TrimSpace(text[len("ink:"):])
		} else if strings.HasPrefix(lower, "pickup:") {
			area.RemovalNotes = strings.TrimSpace(text[len("pickup:"):])
		}
	}
}

// referenceKeywords maps note keywords onto reference sub-types. Order
// matters: "embroidery guide" must match before the bare "guide".
var referenceKeywords = []struct {
	keyword string
	refType string
}{
	{"embroidery guide", "embroidery_guide"},
	{"sketch", "sketch"},
	{"logo", "logo"},
	{"cut", "cut"},
	{"guide", "guide"},
}

func referenceType(notes string) string {
	lower := strings.ToLower(notes)
	for _, rk := range referenceKeywords {
		if strings.Contains(lower, rk.keyword) {
			return rk.refType
		}
	}
	return ""
}

// classifyLine applies the fixed decision table, in order:
//  1. no sub-lines and a non-zero total -> one extra item
//  2. per sub-line: reference keyword with an attached file -> reference
//  3. no link, no reference keyword, positive quantity -> extra
//  4. link with positive quantity -> productive
//
// A sub-line matching none of the rules (e.g. a reference keyword
// without an attached file) is dropped.
func classifyLine(group *MaterialGroup, line gestixOrderLine) {
	if len(line.SubLines) == 0 {
		total := decimalFromNumber(line.Total)
		if !total.IsZero() {
			qty := decimalFromNumber(line.Quantity)
			if qty.LessThanOrEqual(decimal.Zero) {
				qty = decimal.NewFromInt(1)
			}
			group.Extras = append(group.Extras, ExtraItem{
				Description: strings.TrimSpace(line.Description),
				Quantity:    qty,
			})
		}
		return
	}

	for _, sub := range line.SubLines {
		copies := decimalFromNumber(sub.Copies)
		link := strings.TrimSpace(sub.FileLink)
		refType := referenceType(sub.Notes)

		switch {
		case refType != "" && link != "":
			group.Reference = append(group.Reference, ReferenceItem{
				RefType:  refType,
				FileLink: link,
				Notes:    strings.TrimSpace(sub.Notes),
			})
		case link == "" && refType == "" && copies.GreaterThan(decimal.Zero):
			group.Extras = append(group.Extras, ExtraItem{
				Description: strings.TrimSpace(sub.Notes),
				Quantity:    copies,
			})
		case link != "" && copies.GreaterThan(decimal.Zero):
			group.Productive = append(group.Productive, ProductiveItem{
				FileLink: link,
				Copies:   copies,
				Measure:  decimalFromNumber(sub.Measure),
			})
		}
	}
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	return utils.DecimalFromString(num.String())
}

func parseTimeOrNow(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Now()
}
