package gestixsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/grafimark/shopfloor_backend/config"
	"bitbucket.org/grafimark/shopfloor_backend/models"
	"bitbucket.org/grafimark/shopfloor_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func alertCount(entries []*logrus.Entry, event string) int {
	n := 0
	for _, e := range entries {
		if e.Message == event {
			n++
		}
	}
	return n
}

func TestPersistCycleEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "shopfloor_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	mappings := []models.AreaMapping{
		{ErpCode: "PRT", Area: "PRINT", Priority: 1, LeadDays: 2},
		{ErpCode: "FIN", Area: "FINISH", Priority: 2, LeadDays: 1},
	}
	if err := db.Create(&mappings).Error; err != nil {
		t.Fatalf("seed area mappings: %v", err)
	}
	productID := 42
	if err := db.Create(&models.Article{
		Code: "A1", Name: "Banner", GestixProductId: &productID,
	}).Error; err != nil {
		t.Fatalf("seed article: %v", err)
	}

	orders := []rawOrder{
		{
			Header: gestixOrderHeader{InvoiceNumber: 1001, DocNumber: "1001", ClientName: "Acme", ClientCode: "C9"},
			Lines: []gestixOrderLine{
				{GroupCode: "PRT", ArticleCode: "A1", Name: "Banner", Unit: "m",
					SubLines: []gestixSubLine{{Copies: json.Number("2"), Measure: json.Number("1.5"), FileLink: "art.pdf"}}},
				{GroupCode: "FIN", ArticleCode: "A2", Name: "Eyelets",
					Quantity: json.Number("1"), Total: json.Number("12")},
			},
		},
	}

	resolver, err := newDBAreaResolver(db)
	if err != nil {
		t.Fatalf("newDBAreaResolver: %v", err)
	}
	docs := BuildDocuments(orders, resolver)

	hook := test.NewLocal(config.GetLogger())
	out, err := persistCycle(ctx, db, docs, 0, newSeenSet())
	if err != nil {
		t.Fatalf("persistCycle: %v", err)
	}
	if out.Created != 2 || out.Skipped != 0 || out.MaxInvoice != 1001 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if n := alertCount(hook.AllEntries(), AlertArticleAutoCreated); n != 1 {
		t.Fatalf("expected 1 auto-created alert after commit, got %d", n)
	}
	if n := alertCount(hook.AllEntries(), AlertOrderUnlinkedArticle); n != 1 {
		t.Fatalf("expected 1 unlinked-article alert after commit, got %d", n)
	}

	var persisted []models.ProductionOrder
	if err := db.Where("gestix_doc_ref = ?", "1001").Order("id asc").Find(&persisted).Error; err != nil {
		t.Fatalf("load orders: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(persisted))
	}
	if persisted[0].SeqCode != "1001 (1/2)" || persisted[1].SeqCode != "1001 (2/2)" {
		t.Fatalf("unexpected seq codes: %s, %s", persisted[0].SeqCode, persisted[1].SeqCode)
	}
	if persisted[0].GestixProductId == nil || *persisted[0].GestixProductId != productID {
		t.Fatalf("expected linked product id, got %+v", persisted[0].GestixProductId)
	}
	if persisted[0].EstimatedDelivery == nil {
		t.Fatal("expected an estimated delivery date")
	}

	// A2 was unknown and must have been auto-created as a placeholder.
	var auto models.Article
	if err := db.Where("code = ?", "A2").Take(&auto).Error; err != nil {
		t.Fatalf("auto-created article missing: %v", err)
	}
	if !auto.AutoCreated || auto.Name != "Eyelets" {
		t.Fatalf("unexpected auto-created article: %+v", auto)
	}

	// A miss surfaces as the storage-agnostic sentinel, not a gorm error.
	if _, err := models.GetArticleByStockCode(db, "NO-SUCH"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound for an unknown stock code, got %v", err)
	}

	wm, err := models.GetWatermark(db)
	if err != nil || wm != 1001 {
		t.Fatalf("expected watermark 1001, got %d (%v)", wm, err)
	}

	// Re-importing the same document must be a no-op.
	out, err = persistCycle(ctx, db, docs, wm, newSeenSet())
	if err != nil {
		t.Fatalf("persistCycle rerun: %v", err)
	}
	if out.Created != 0 || out.Skipped != 1 {
		t.Fatalf("expected the rerun to skip, got %+v", out)
	}
	var count int64
	if err := db.Model(&models.ProductionOrder{}).Count(&count).Error; err != nil || count != 2 {
		t.Fatalf("expected 2 orders after rerun, got %d (%v)", count, err)
	}

	// A late document with a lower invoice number must import without
	// moving the watermark backwards.
	late := []rawOrder{
		{
			Header: gestixOrderHeader{InvoiceNumber: 900, DocNumber: "0900"},
			Lines: []gestixOrderLine{
				{GroupCode: "PRT", ArticleCode: "A1", Unit: "m",
					SubLines: []gestixSubLine{{Copies: json.Number("1"), Measure: json.Number("1"), FileLink: "b.pdf"}}},
			},
		},
	}
	out, err = persistCycle(ctx, db, BuildDocuments(late, resolver), wm, newSeenSet())
	if err != nil {
		t.Fatalf("persistCycle late doc: %v", err)
	}
	if out.Created != 1 {
		t.Fatalf("expected the late doc to import, got %+v", out)
	}
	wm, err = models.GetWatermark(db)
	if err != nil || wm != 1001 {
		t.Fatalf("watermark moved backwards: %d (%v)", wm, err)
	}
}

func TestPersistCycleRollsBackWhole(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "shopfloor_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	if err := db.Create(&models.AreaMapping{ErpCode: "PRT", Area: "PRINT", Priority: 1, LeadDays: 1}).Error; err != nil {
		t.Fatalf("seed area mapping: %v", err)
	}

	orders := []rawOrder{
		{
			Header: gestixOrderHeader{InvoiceNumber: 2001, DocNumber: "2001"},
			Lines: []gestixOrderLine{
				{GroupCode: "PRT", ArticleCode: "B1", Unit: "m",
					SubLines: []gestixSubLine{{Copies: json.Number("1"), Measure: json.Number("2"), FileLink: "x.pdf"}}},
				{GroupCode: "PRT", ArticleCode: "B2",
					Quantity: json.Number("1"), Total: json.Number("5")},
			},
		},
	}
	resolver, err := newDBAreaResolver(db)
	if err != nil {
		t.Fatalf("newDBAreaResolver: %v", err)
	}
	docs := BuildDocuments(orders, resolver)

	inserts := 0
	insertOrderHook = func(order *models.ProductionOrder) error {
		inserts++
		if inserts == 2 {
			return errors.New("simulated insert failure")
		}
		return nil
	}
	defer func() { insertOrderHook = nil }()

	hook := test.NewLocal(config.GetLogger())
	if _, err := persistCycle(ctx, db, docs, 0, newSeenSet()); err == nil {
		t.Fatal("expected the cycle to fail")
	}

	// B1 is unknown, so the cycle would have auto-created it, but the
	// rollback means no alert may announce it.
	if n := alertCount(hook.AllEntries(), AlertArticleAutoCreated); n != 0 {
		t.Fatalf("expected no auto-created alerts after rollback, got %d", n)
	}
	if n := alertCount(hook.AllEntries(), AlertOrderUnlinkedArticle); n != 0 {
		t.Fatalf("expected no unlinked-article alerts after rollback, got %d", n)
	}

	// Nothing may survive the rollback: no orders, no auto-created
	// articles, no watermark.
	var orderCount int64
	if err := db.Model(&models.ProductionOrder{}).Count(&orderCount).Error; err != nil || orderCount != 0 {
		t.Fatalf("expected 0 orders after rollback, got %d (%v)", orderCount, err)
	}
	var articleCount int64
	if err := db.Model(&models.Article{}).Count(&articleCount).Error; err != nil || articleCount != 0 {
		t.Fatalf("expected 0 articles after rollback, got %d (%v)", articleCount, err)
	}
	wm, err := models.GetWatermark(db)
	if err != nil || wm != 0 {
		t.Fatalf("expected watermark 0 after rollback, got %d (%v)", wm, err)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("shopfloor-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=shopfloor_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
