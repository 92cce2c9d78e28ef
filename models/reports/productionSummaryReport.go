package reports

import (
	"context"
	"time"

	"bitbucket.org/grafimark/shopfloor_backend/config"
	"github.com/shopspring/decimal"
)

type ProductionSummaryResponse struct {
	Area           string          `json:"area"`
	AreaPriority   int             `json:"areaPriority"`
	OrderCount     int             `json:"orderCount"`
	TotalMagnitude decimal.Decimal `json:"totalMagnitude"`
	LinkedCount    int             `json:"linkedCount"`
	UnlinkedCount  int             `json:"unlinkedCount"`
}

// GetProductionSummaryReport aggregates the imported production orders
// per area over an entry-date window: volumes plus how many orders are
// still waiting for their Gestix product link.
func GetProductionSummaryReport(ctx context.Context, fromDate time.Time, toDate time.Time) ([]*ProductionSummaryResponse, error) {
	sql := `
SELECT
    area,
    MIN(area_priority) AS area_priority,
    COUNT(id) AS order_count,
    SUM(magnitude) AS total_magnitude,
    SUM(CASE WHEN gestix_product_id IS NOT NULL THEN 1 ELSE 0 END) AS linked_count,
    SUM(CASE WHEN gestix_product_id IS NULL THEN 1 ELSE 0 END) AS unlinked_count
FROM
    production_orders
WHERE
    entry_date BETWEEN @fromDate AND @toDate
GROUP BY
    area
ORDER BY
    area_priority ASC, area ASC;
`

	var records []*ProductionSummaryResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql,
		map[string]interface{}{"fromDate": fromDate, "toDate": toDate},
	).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
