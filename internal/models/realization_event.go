package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TradeRealizationEvent records one realized-P&L moment (partial or full close).
// ExternalID is a composite dedup key derived from the close report, so repeated
// syncs over overlapping windows never double-count P&L.
type TradeRealizationEvent struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ConnectionID uint64 `gorm:"not null;uniqueIndex:idx_realizations_conn_ext,priority:1"`
	ExternalID   string `gorm:"type:varchar(200);not null;uniqueIndex:idx_realizations_conn_ext,priority:2"`

	TradeIdeaGroupID *uint64 `gorm:"index"`

	PositionID   string `gorm:"type:varchar(100);index"`
	OrderID      string `gorm:"type:varchar(100)"`
	InstrumentID string `gorm:"type:varchar(100);index"`
	Symbol       string `gorm:"type:varchar(50)"`
	Side         string `gorm:"type:varchar(10)"`

	QtyClosed  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	OpenPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	ClosePrice decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	Profit     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Commission decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Swap       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	OpenedAt *time.Time     `gorm:"type:timestamptz"`
	ClosedAt time.Time      `gorm:"type:timestamptz;not null;index"`
	Raw      datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (TradeRealizationEvent) TableName() string {
	return "trade_realization_events"
}
