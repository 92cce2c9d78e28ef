package models

import "time"

// Client is the local client master. GestixClientId is empty until the
// record has been linked to its Gestix counterpart.
type Client struct {
	ID             uint      `gorm:"primary_key" json:"id"`
	Code           string    `gorm:"index;size:64;not null" json:"code"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	GestixClientId string    `gorm:"size:64" json:"gestix_client_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
