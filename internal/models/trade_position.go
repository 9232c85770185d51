package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TradePosition is an open position as reported by the broker on the last sync.
type TradePosition struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ConnectionID uint64 `gorm:"not null;uniqueIndex:idx_trade_positions_conn_ext,priority:1"`
	ExternalID   string `gorm:"type:varchar(100);not null;uniqueIndex:idx_trade_positions_conn_ext,priority:2"`

	InstrumentID string `gorm:"type:varchar(100);index"`
	Symbol       string `gorm:"type:varchar(50)"`
	Side         string `gorm:"type:varchar(10)"`

	Qty          decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	AvgPrice     decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	UnrealizedPL decimal.Decimal `gorm:"column:unrealized_pl;type:numeric(30,10);not null;default:0"`

	OpenedAt *time.Time     `gorm:"type:timestamptz;index"`
	Raw      datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradePosition) TableName() string {
	return "trade_positions"
}
