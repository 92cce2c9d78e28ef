package workflow

import (
	"time"

	"bitbucket.org/grafimark/shopfloor_backend/models"
	"gorm.io/gorm"
)

// EstimateDeliveryDate recomputes a production order's estimated
// delivery from its entry date plus the area's lead days, counting
// working days only (the shop is closed on Sundays). Callers treat a
// failure here as non-fatal.
func EstimateDeliveryDate(tx *gorm.DB, order *models.ProductionOrder, leadDays int) error {
	if leadDays <= 0 {
		leadDays = 1
	}
	estimated := addWorkingDays(order.EntryDate, leadDays)
	order.EstimatedDelivery = &estimated
	return tx.Model(&models.ProductionOrder{}).
		Where("id = ?", order.ID).
		Update("estimated_delivery", estimated).Error
}

func addWorkingDays(from time.Time, days int) time.Time {
	t := from
	for days > 0 {
		t = t.AddDate(0, 0, 1)
		if t.Weekday() == time.Sunday {
			continue
		}
		days--
	}
	return t
}
