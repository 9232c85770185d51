package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TradeOrder is a working (open or recently open) order as reported by the broker.
type TradeOrder struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ConnectionID uint64 `gorm:"not null;uniqueIndex:idx_trade_orders_conn_ext,priority:1"`
	ExternalID   string `gorm:"type:varchar(100);not null;uniqueIndex:idx_trade_orders_conn_ext,priority:2"`

	InstrumentID string `gorm:"type:varchar(100);index"`
	Symbol       string `gorm:"type:varchar(50)"`
	Side         string `gorm:"type:varchar(10)"`
	OrderType    string `gorm:"type:varchar(20)"`
	Status       string `gorm:"type:varchar(20);index"`
	PositionID   string `gorm:"type:varchar(100);index"`

	Qty       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	FilledQty decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Price     decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`

	PlacedAt *time.Time     `gorm:"type:timestamptz;index"`
	Raw      datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradeOrder) TableName() string {
	return "trade_orders"
}

// TradeOrderHistory mirrors TradeOrder for the broker's historical order feed.
type TradeOrderHistory struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ConnectionID uint64 `gorm:"not null;uniqueIndex:idx_trade_orders_hist_conn_ext,priority:1"`
	ExternalID   string `gorm:"type:varchar(100);not null;uniqueIndex:idx_trade_orders_hist_conn_ext,priority:2"`

	InstrumentID string `gorm:"type:varchar(100);index"`
	Symbol       string `gorm:"type:varchar(50)"`
	Side         string `gorm:"type:varchar(10)"`
	OrderType    string `gorm:"type:varchar(20)"`
	Status       string `gorm:"type:varchar(20);index"`
	PositionID   string `gorm:"type:varchar(100);index"`

	Qty       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	FilledQty decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Price     decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`

	PlacedAt *time.Time     `gorm:"type:timestamptz;index"`
	Raw      datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradeOrderHistory) TableName() string {
	return "trade_order_history"
}
