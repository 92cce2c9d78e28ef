package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductionOrder is one flattened, independently trackable unit of
// work derived from a Gestix document: exactly one row per
// (area, material group) pair that carried at least one item.
// Created only by the sync persister, inside the cycle transaction;
// the rest of the application mutates it afterwards.
type ProductionOrder struct {
	ID                uint            `gorm:"primary_key" json:"id"`
	SeqCode           string          `gorm:"size:64;not null" json:"seq_code"`
	GestixDocRef      string          `gorm:"index;size:64;not null" json:"gestix_doc_ref"`
	Area              string          `gorm:"index;size:64;not null" json:"area"`
	AreaPriority      int             `gorm:"not null;default:0" json:"area_priority"`
	ClientName        string          `gorm:"size:255" json:"client_name"`
	ClientCode        string          `gorm:"size:64" json:"client_code"`
	GestixClientId    string          `gorm:"size:64" json:"gestix_client_id"`
	Description       string          `gorm:"type:text" json:"description"`
	PriorityLabel     string          `gorm:"size:32" json:"priority_label"`
	Material          string          `gorm:"size:255" json:"material"`
	Variant           string          `gorm:"size:128" json:"variant"`
	Unit              string          `gorm:"size:16" json:"unit"`
	Magnitude         decimal.Decimal `gorm:"type:decimal(14,2)" json:"magnitude"`
	InkNotes          string          `gorm:"type:text" json:"ink_notes"`
	RemovalNotes      string          `gorm:"type:text" json:"removal_notes"`
	NextService       string          `gorm:"size:64" json:"next_service"`
	ArticleCode       string          `gorm:"index;size:64" json:"article_code"`
	GestixProductId   *int            `json:"gestix_product_id"`
	Notes             string          `gorm:"type:text" json:"notes"`
	EntryDate         time.Time       `json:"entry_date"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Files      []ProductionOrderFile      `gorm:"foreignKey:ProductionOrderId" json:"files"`
	References []ProductionOrderReference `gorm:"foreignKey:ProductionOrderId" json:"references"`
	Extras     []ProductionOrderExtra     `gorm:"foreignKey:ProductionOrderId" json:"extras"`
}

// ProductionOrderFile is one productive item: the artwork to run plus
// its copy count and linear measure.
type ProductionOrderFile struct {
	ID                uint            `gorm:"primary_key" json:"id"`
	ProductionOrderId uint            `gorm:"index;not null" json:"production_order_id"`
	FileLink          string          `gorm:"size:512;not null" json:"file_link"`
	Copies            decimal.Decimal `gorm:"type:decimal(14,2)" json:"copies"`
	Measure           decimal.Decimal `gorm:"type:decimal(14,2)" json:"measure"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ProductionOrderReference is a non-billable supporting artifact
// (sketch, logo, cut guide) attached to the order.
type ProductionOrderReference struct {
	ID                uint      `gorm:"primary_key" json:"id"`
	ProductionOrderId uint      `gorm:"index;not null" json:"production_order_id"`
	RefType           string    `gorm:"size:32;not null" json:"ref_type"`
	FileLink          string    `gorm:"size:512" json:"file_link"`
	Notes             string    `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ProductionOrderExtra is a billable service add-on with no production
// file of its own.
type ProductionOrderExtra struct {
	ID                uint            `gorm:"primary_key" json:"id"`
	ProductionOrderId uint            `gorm:"index;not null" json:"production_order_id"`
	Description       string          `gorm:"size:255" json:"description"`
	Quantity          decimal.Decimal `gorm:"type:decimal(14,2)" json:"quantity"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
