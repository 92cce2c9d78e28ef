package models

import (
	"bitbucket.org/grafimark/shopfloor_backend/config"
	"bitbucket.org/grafimark/shopfloor_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	utils.ErrorPanic(db.AutoMigrate(
		&SyncState{},
		&AreaMapping{},
		&Article{},
		&Client{},
		&ProductionOrder{}, &ProductionOrderFile{}, &ProductionOrderReference{}, &ProductionOrderExtra{},
	))
}
