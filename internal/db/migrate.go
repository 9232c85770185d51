package db

import (
	"traderlaunchpad/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.BrokerConnection{},
		&models.TradeOrder{},
		&models.TradeOrderHistory{},
		&models.TradePosition{},
		&models.TradeExecution{},
		&models.AccountState{},
		&models.TradeIdeaGroup{},
		&models.TradeRealizationEvent{},
		&models.SyncState{},
	)
}
