package gestixsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"bitbucket.org/grafimark/shopfloor_backend/config"
	"bitbucket.org/grafimark/shopfloor_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// runReconciliation spawns the two post-commit workers and returns a
// channel carrying their failures. The channel closes when both workers
// are done. Reconciliation never touches the cycle transaction: the
// committed orders stay committed no matter what happens here.
func runReconciliation(ctx context.Context, db *gorm.DB, client *gestixClient, docs []persistedDoc) <-chan error {
	errCh := make(chan error, len(docs)+1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		clientLinkWorker(ctx, db, client, docs, errCh)
	}()
	go func() {
		defer wg.Done()
		if err := productLinkWorker(ctx, db, docs); err != nil {
			errCh <- fmt.Errorf("product linking: %w", err)
		}
	}()
	go func() {
		wg.Wait()
		close(errCh)
	}()
	return errCh
}

// clientLinkWorker links each document's client to its Gestix
// counterpart and stamps the resolved identity onto the document's
// orders. Documents are independent; one failure does not block the
// rest.
func clientLinkWorker(ctx context.Context, db *gorm.DB, client *gestixClient, docs []persistedDoc, errCh chan<- error) {
	logger := config.GetLogger()

	for _, doc := range docs {
		code := strings.TrimSpace(doc.ClientCode)
		if code == "" {
			continue
		}
		gestixID, err := resolveClientLink(ctx, db, client, code, doc.ClientName)
		if err != nil {
			config.LogError(logger, "gestixsync", "clientLinkWorker", "resolve client", doc.DocRef, err)
			errCh <- fmt.Errorf("client linking %s: %w", doc.DocRef, err)
			continue
		}
		if err := db.WithContext(ctx).Model(&models.ProductionOrder{}).
			Where("gestix_doc_ref = ?", doc.DocRef).
			Updates(map[string]interface{}{
				"client_code":      code,
				"gestix_client_id": gestixID,
			}).Error; err != nil {
			errCh <- fmt.Errorf("client linking %s: %w", doc.DocRef, err)
			continue
		}
		logger.WithFields(logrus.Fields{"doc": doc.DocRef, "client_code": code}).Debug("client linked")
	}
}

// resolveClientLink finds or creates the local client record and makes
// sure it carries a Gestix id, exporting the client when Gestix has no
// counterpart yet.
func resolveClientLink(ctx context.Context, db *gorm.DB, client *gestixClient, code, name string) (string, error) {
	var local models.Client
	err := db.WithContext(ctx).Where("code = ?", code).Take(&local).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if name == "" {
			name = code
		}
		local = models.Client{Code: code, Name: name}
		if err := db.WithContext(ctx).Create(&local).Error; err != nil {
			return "", err
		}
	}

	if local.GestixClientId != "" {
		return local.GestixClientId, nil
	}

	gestixID, err := client.LookupClient(ctx, code)
	if err != nil {
		return "", err
	}
	if gestixID == 0 {
		gestixID, err = client.ExportClient(ctx, code, local.Name)
		if err != nil {
			return "", err
		}
	}

	linked := strconv.Itoa(gestixID)
	if err := db.WithContext(ctx).Model(&local).Update("gestix_client_id", linked).Error; err != nil {
		return "", err
	}
	return linked, nil
}

// productLinkWorker back-fills missing Gestix product ids on the newly
// created orders from the article master in one bulk update. Running it
// again is a no-op: already-linked rows no longer match.
func productLinkWorker(ctx context.Context, db *gorm.DB, docs []persistedDoc) error {
	if len(docs) == 0 {
		return nil
	}
	refs := make([]string, 0, len(docs))
	for _, doc := range docs {
		refs = append(refs, doc.DocRef)
	}

	return db.WithContext(ctx).Exec(
		`UPDATE production_orders po
		 JOIN articles a ON UPPER(TRIM(a.code)) = UPPER(TRIM(po.article_code))
		 SET po.gestix_product_id = a.gestix_product_id
		 WHERE po.gestix_product_id IS NULL
		   AND a.gestix_product_id IS NOT NULL
		   AND po.gestix_doc_ref IN ?`,
		refs,
	).Error
}
