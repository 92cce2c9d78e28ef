package models

import (
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
)

const SyncStateKeyLastInvoice = "gestix_last_invoice"

// SyncState is a small key/value table; the only key the engine uses is
// the last imported Gestix invoice number (the fetch watermark).
type SyncState struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:64;not null" json:"key"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetWatermark reads the last imported invoice number. A missing row
// means nothing has been imported yet and reads as zero.
func GetWatermark(db *gorm.DB) (int, error) {
	var state SyncState
	err := db.Where("`key` = ?", SyncStateKeyLastInvoice).Take(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(state.Value)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SetWatermark upserts the watermark row. Callers must only invoke this
// inside the sync cycle's transaction, after verifying the new value is
// greater than the stored one; the watermark never moves backwards.
func SetWatermark(tx *gorm.DB, invoiceNumber int) error {
	value := strconv.Itoa(invoiceNumber)
	var state SyncState
	err := tx.Where("`key` = ?", SyncStateKeyLastInvoice).Take(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&SyncState{Key: SyncStateKeyLastInvoice, Value: value}).Error
		}
		return err
	}
	return tx.Model(&state).Update("value", value).Error
}
