package models

import (
	"time"
)

// BrokerConnection stores one user's link to a TradeLocker account.
// Token material is kept encrypted at rest (enc_v1 envelope).
type BrokerConnection struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	OrganizationID string `gorm:"type:varchar(100);not null;uniqueIndex:idx_connections_org_user,priority:1"`
	UserID         string `gorm:"type:varchar(100);not null;uniqueIndex:idx_connections_org_user,priority:2"`

	Provider    string `gorm:"type:varchar(30);not null;default:'tradelocker'"`
	Environment string `gorm:"type:varchar(10);not null;default:'demo'"`
	Server      string `gorm:"type:varchar(100)"`
	JWTHost     string `gorm:"column:jwt_host;type:varchar(255)"`

	AccountID string `gorm:"type:varchar(100);index"`
	AccNum    string `gorm:"type:varchar(50)"`
	Email     string `gorm:"type:varchar(255)"`

	AccessTokenEnc        string     `gorm:"type:text"`
	RefreshTokenEnc       string     `gorm:"type:text"`
	AccessTokenExpiresAt  *time.Time `gorm:"type:timestamptz"`
	RefreshTokenExpiresAt *time.Time `gorm:"type:timestamptz"`

	Status    string  `gorm:"type:varchar(20);not null;default:'connected';index"`
	LastError *string `gorm:"type:text"`

	LastSyncAt           *time.Time `gorm:"type:timestamptz"`
	LastBrokerActivityAt *time.Time `gorm:"type:timestamptz"`
	HasOpenTrade         bool       `gorm:"not null;default:false"`

	SyncLeaseOwner *string    `gorm:"type:varchar(64)"`
	SyncLeaseUntil *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (BrokerConnection) TableName() string {
	return "broker_connections"
}
