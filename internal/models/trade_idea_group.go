package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeIdeaGroup is one logical trade rebuilt from executions: either all fills
// sharing a broker position id, or one flat-to-flat episode on an instrument.
type TradeIdeaGroup struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ConnectionID uint64 `gorm:"not null;uniqueIndex:idx_trade_ideas_conn_key,priority:1"`
	PositionKey  string `gorm:"type:varchar(150);not null;uniqueIndex:idx_trade_ideas_conn_key,priority:2"`

	InstrumentID string `gorm:"type:varchar(100);index"`
	Symbol       string `gorm:"type:varchar(50)"`
	Direction    string `gorm:"type:varchar(10);not null"`
	Status       string `gorm:"type:varchar(20);not null;default:'open';index"`

	NetQty        decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	AvgEntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	RealizedPnL   decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10);not null;default:0"`
	Fees          decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	ExecutionCount  int        `gorm:"not null;default:0"`
	OpenedAt        *time.Time `gorm:"type:timestamptz"`
	ClosedAt        *time.Time `gorm:"type:timestamptz"`
	LastExecutionAt *time.Time `gorm:"type:timestamptz;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradeIdeaGroup) TableName() string {
	return "trade_idea_groups"
}
