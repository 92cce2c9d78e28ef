package models

import (
	"time"

	"gorm.io/gorm"
)

// AreaMapping maps a Gestix section/group code onto an internal
// production area. Priority orders areas inside one document; LeadDays
// feeds the delivery estimate.
type AreaMapping struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	ErpCode   string    `gorm:"uniqueIndex;size:32;not null" json:"erp_code"`
	Area      string    `gorm:"size:64;not null" json:"area"`
	Priority  int       `gorm:"not null;default:0" json:"priority"`
	LeadDays  int       `gorm:"not null;default:0" json:"lead_days"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetAreaMappings loads the whole mapping table; the sync cycle resolves
// lines against the in-memory copy instead of one query per line.
func GetAreaMappings(db *gorm.DB) ([]AreaMapping, error) {
	var mappings []AreaMapping
	if err := db.Order("priority asc, id asc").Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}
