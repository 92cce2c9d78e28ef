package models

import (
	"errors"
	"time"

	"bitbucket.org/grafimark/shopfloor_backend/utils"
	"gorm.io/gorm"
)

// Article is the local article master. GestixProductId is the link to
// the product record in Gestix; nil until reconciliation fills it in.
type Article struct {
	ID              uint      `gorm:"primary_key" json:"id"`
	Code            string    `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Name            string    `gorm:"size:255" json:"name"`
	StockCode       string    `gorm:"index;size:64" json:"stock_code"`
	ErpGroupCode    string    `gorm:"size:32" json:"erp_group_code"`
	GestixProductId *int      `json:"gestix_product_id"`
	AutoCreated     bool      `gorm:"default:false" json:"auto_created"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetArticlesByCodes(db *gorm.DB, codes []string) ([]Article, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var articles []Article
	if err := db.Where("code IN ?", codes).Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func GetArticleByStockCode(db *gorm.DB, stockCode string) (*Article, error) {
	var article Article
	err := db.Where("stock_code = ?", stockCode).Take(&article).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &article, nil
}
