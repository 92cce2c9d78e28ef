package gestixsync

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/grafimark/shopfloor_backend/config"
	"bitbucket.org/grafimark/shopfloor_backend/models"
	"bitbucket.org/grafimark/shopfloor_backend/utils"
	"bitbucket.org/grafimark/shopfloor_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// lengthUnits are measurement units where a productive item's magnitude
// is copies x linear measure instead of a plain piece count.
var lengthUnits = map[string]bool{
	"m": true, "ml": true, "lm": true, "mt": true,
	"meter": true, "meters": true, "metre": true, "metres": true,
}

// persistedDoc is what the reconciliation workers need to know about a
// document after its orders have been committed.
type persistedDoc struct {
	DocRef     string
	ClientName string
	ClientCode string
}

type persistOutcome struct {
	Created    int
	Skipped    int
	MaxInvoice int
	Docs       []persistedDoc
}

// pendingAlert is an alert collected during the transaction. Alerts are
// held back until commit so a rollback never announces rows that do not
// exist.
type pendingAlert struct {
	event  string
	fields logrus.Fields
}

// insertOrderHook is a test seam: when set, it runs before every order
// insert and its error aborts the transaction.
var insertOrderHook func(order *models.ProductionOrder) error

// persistCycle writes every document of the cycle inside one
// transaction. Documents whose reference already has orders are skipped
// whole (the check is deliberately per-document, not per-order; a
// reference with any prior order is never re-imported). Any failure
// rolls back the entire cycle, watermark included.
func persistCycle(ctx context.Context, db *gorm.DB, docs []*Document, watermark int, seen *seenSet) (persistOutcome, error) {
	logger := config.GetLogger()
	var out persistOutcome
	var alerts []pendingAlert

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		articleIDs, articleAlerts, err := ensureArticles(tx, docs, seen)
		if err != nil {
			return err
		}
		alerts = append(alerts, articleAlerts...)

		for _, doc := range docs {
			if doc.Invoice > out.MaxInvoice {
				out.MaxInvoice = doc.Invoice
			}

			var count int64
			if err := tx.Model(&models.ProductionOrder{}).
				Where("gestix_doc_ref = ?", doc.Key).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				out.Skipped++
				logger.WithFields(logrus.Fields{"doc": doc.Key}).Info("document already imported; skipping")
				continue
			}

			cands := orderCandidates(doc)
			for i := range cands {
				order := buildOrder(doc, cands, i, articleIDs)
				if insertOrderHook != nil {
					if err := insertOrderHook(order); err != nil {
						return err
					}
				}
				if err := tx.Create(order).Error; err != nil {
					return err
				}
				if order.GestixProductId == nil && order.ArticleCode != genericArticleCode {
					if seen.first("unlinked:" + order.ArticleCode) {
						alerts = append(alerts, pendingAlert{AlertOrderUnlinkedArticle, logrus.Fields{
							"doc":          doc.Key,
							"article_code": order.ArticleCode,
						}})
					}
				}
				// Delivery estimation is best effort; a failure must not
				// take the cycle down with it.
				if err := workflow.EstimateDeliveryDate(tx, order, cands[i].Area.LeadDays); err != nil {
					logger.WithFields(logrus.Fields{
						"doc":      doc.Key,
						"seq_code": order.SeqCode,
					}).Warn("delivery estimate failed: " + err.Error())
				}
			}

			out.Created += len(cands)
			out.Docs = append(out.Docs, persistedDoc{
				DocRef:     doc.Key,
				ClientName: doc.ClientName,
				ClientCode: doc.ClientCode,
			})
		}

		if out.MaxInvoice > watermark {
			if err := models.SetWatermark(tx, out.MaxInvoice); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return persistOutcome{}, err
	}
	for _, alert := range alerts {
		emitAlert(ctx, alert.event, alert.fields)
	}
	return out, nil
}

// ensureArticles pre-builds the article-code lookup for the cycle:
// read which codes exist, bulk-create the missing ones with placeholder
// metadata, collect one alert per auto-created code.
func ensureArticles(tx *gorm.DB, docs []*Document, seen *seenSet) (map[string]*int, []pendingAlert, error) {
	var codes []string
	groupsByCode := make(map[string]*MaterialGroup)
	for _, doc := range docs {
		for _, area := range doc.Areas() {
			for _, group := range area.Groups() {
				if !group.hasItems() || group.ArticleCode == genericArticleCode {
					continue
				}
				codes = append(codes, group.ArticleCode)
				if _, ok := groupsByCode[group.ArticleCode]; !ok {
					groupsByCode[group.ArticleCode] = group
				}
			}
		}
	}
	codes = utils.UniqueStrings(codes)

	lookup := make(map[string]*int, len(codes))
	existing, err := models.GetArticlesByCodes(tx, codes)
	if err != nil {
		return nil, nil, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, article := range existing {
		known[article.Code] = struct{}{}
		lookup[article.Code] = article.GestixProductId
	}

	var missing []models.Article
	for _, code := range codes {
		if _, ok := known[code]; ok {
			continue
		}
		group := groupsByCode[code]
		missing = append(missing, models.Article{
			Code:         code,
			Name:         placeholderArticleName(group),
			StockCode:    group.StockCode,
			ErpGroupCode: group.GroupCode,
			AutoCreated:  true,
		})
	}
	var alerts []pendingAlert
	if len(missing) > 0 {
		if err := tx.Create(&missing).Error; err != nil {
			return nil, nil, err
		}
		for _, article := range missing {
			lookup[article.Code] = nil
			if seen.first("autocreated:" + article.Code) {
				alerts = append(alerts, pendingAlert{AlertArticleAutoCreated, logrus.Fields{
					"article_code": article.Code,
					"stock_code":   article.StockCode,
				}})
			}
		}
	}
	return lookup, alerts, nil
}

func placeholderArticleName(group *MaterialGroup) string {
	name := strings.TrimSpace(group.Material)
	if name == "" {
		name = group.ArticleCode
	}
	return name
}

func buildOrder(doc *Document, cands []candidate, i int, articleIDs map[string]*int) *models.ProductionOrder {
	cand := cands[i]
	group := cand.Group

	order := &models.ProductionOrder{
		SeqCode:       fmt.Sprintf("%s (%d/%d)", doc.Key, i+1, len(cands)),
		GestixDocRef:  doc.Key,
		Area:          cand.Area.Name,
		AreaPriority:  cand.Area.Priority,
		ClientName:    doc.ClientName,
		ClientCode:    doc.ClientCode,
		Description:   doc.Description,
		PriorityLabel: doc.Priority,
		Material:      group.Material,
		Variant:       group.Variant,
		Unit:          group.Unit,
		Magnitude:     computeMagnitude(group),
		InkNotes:      cand.Area.InkNotes,
		RemovalNotes:  cand.Area.RemovalNotes,
		NextService:   nextService(cands, i),
		ArticleCode:   group.ArticleCode,
		Notes:         doc.Notes,
		EntryDate:     doc.CreatedAt,
	}
	if group.ArticleCode != genericArticleCode {
		order.GestixProductId = articleIDs[group.ArticleCode]
	}

	for _, item := range group.Productive {
		order.Files = append(order.Files, models.ProductionOrderFile{
			FileLink: item.FileLink,
			Copies:   item.Copies,
			Measure:  item.Measure,
		})
	}
	for _, item := range group.Reference {
		order.References = append(order.References, models.ProductionOrderReference{
			RefType:  item.RefType,
			FileLink: item.FileLink,
			Notes:    item.Notes,
		})
	}
	for _, item := range group.Extras {
		order.Extras = append(order.Extras, models.ProductionOrderExtra{
			Description: item.Description,
			Quantity:    item.Quantity,
		})
	}
	return order
}

// computeMagnitude: for length units the magnitude is the linear total
// (copies x measure over productive items); otherwise it is the piece
// count (productive copies plus extra quantities).
func computeMagnitude(group *MaterialGroup) decimal.Decimal {
	total := decimal.Zero
	if lengthUnits[strings.ToLower(strings.TrimSpace(group.Unit))] {
		for _, item := range group.Productive {
			total = total.Add(item.Copies.Mul(item.Measure))
		}
		return total
	}
	for _, item := range group.Productive {
		total = total.Add(item.Copies)
	}
	for _, item := range group.Extras {
		total = total.Add(item.Quantity)
	}
	return total
}
