package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TradeExecution is a single fill reported by the broker.
type TradeExecution struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ConnectionID uint64 `gorm:"not null;uniqueIndex:idx_trade_executions_conn_ext,priority:1"`
	ExternalID   string `gorm:"type:varchar(150);not null;uniqueIndex:idx_trade_executions_conn_ext,priority:2"`

	OrderID      string `gorm:"type:varchar(100);index"`
	PositionID   string `gorm:"type:varchar(100);index"`
	InstrumentID string `gorm:"type:varchar(100);index"`
	Symbol       string `gorm:"type:varchar(50)"`
	Side         string `gorm:"type:varchar(10)"`

	Qty   decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Price decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	Fee   decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	ExecutedAt time.Time      `gorm:"type:timestamptz;not null;index"`
	Raw        datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (TradeExecution) TableName() string {
	return "trade_executions"
}
