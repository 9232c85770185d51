package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AccountState is the latest balance snapshot for a connection.
type AccountState struct {
	ConnectionID uint64 `gorm:"primaryKey"`

	Balance      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Equity       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	OpenPL       decimal.Decimal `gorm:"column:open_pl;type:numeric(30,10);not null;default:0"`
	MarginUsed   decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	FreeMargin   decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	CurrencyCode string          `gorm:"type:varchar(10)"`

	Raw        datatypes.JSON `gorm:"type:jsonb"`
	CapturedAt time.Time      `gorm:"type:timestamptz;not null"`
	UpdatedAt  time.Time      `gorm:"type:timestamptz;autoUpdateTime"`
}

func (AccountState) TableName() string {
	return "broker_account_states"
}
