package repository

import (
	"context"
	"time"

	"traderlaunchpad/internal/models"
)

type ListTradeIdeasParams struct {
	ConnectionID uint64
	Status       *string
	InstrumentID *string
	Limit        int
	Offset       int
	OrderBy      string
	Asc          *bool
}

type ListRealizationsParams struct {
	ConnectionID uint64
	PositionID   *string
	Since        *time.Time
	Limit        int
	Offset       int
}

type ListExecutionsParams struct {
	ConnectionID uint64
	PositionID   *string
	InstrumentID *string
	Limit        int
	Offset       int
}

// UpdateSyncStateParams applies only its non-nil fields, mirroring how the
// broker sync reports partial outcomes (an error run touches status and
// lastError but never clears lastSyncAt).
type UpdateSyncStateParams struct {
	Status               *string
	LastError            *string
	LastSyncAt           *time.Time
	LastBrokerActivityAt *time.Time
	HasOpenTrade         *bool
}

type Repository interface {
	// Connections
	GetConnection(ctx context.Context, organizationID, userID string) (*models.BrokerConnection, error)
	GetConnectionByID(ctx context.Context, id uint64) (*models.BrokerConnection, error)
	ListConnectionsByStatus(ctx context.Context, status string, limit int) ([]models.BrokerConnection, error)
	UpsertConnection(ctx context.Context, item *models.BrokerConnection) error
	UpdateConnectionTokens(ctx context.Context, id uint64, accessEnc, refreshEnc string, accessExpiresAt, refreshExpiresAt *time.Time, jwtHost *string) error
	UpdateConnectionSyncState(ctx context.Context, id uint64, params UpdateSyncStateParams) error
	AcquireConnectionLease(ctx context.Context, id uint64, owner string, until time.Time) (bool, error)
	ReleaseConnectionLease(ctx context.Context, id uint64, owner string) error

	// Broker snapshots
	UpsertTradeOrders(ctx context.Context, items []models.TradeOrder) (int, error)
	UpsertTradeOrderHistory(ctx context.Context, items []models.TradeOrderHistory) (int, error)
	UpsertTradePositions(ctx context.Context, items []models.TradePosition) (int, error)
	DeleteTradePositionsNotIn(ctx context.Context, connectionID uint64, keepExternalIDs []string) (int64, error)
	ListOpenPositionExternalIDs(ctx context.Context, connectionID uint64) ([]string, error)
	UpsertAccountState(ctx context.Context, item *models.AccountState) error
	GetAccountState(ctx context.Context, connectionID uint64) (*models.AccountState, error)

	// Executions
	UpsertTradeExecutions(ctx context.Context, items []models.TradeExecution) (upserted int, created int, err error)
	ListExecutions(ctx context.Context, params ListExecutionsParams) ([]models.TradeExecution, error)
	ListExecutionsByPositionIDs(ctx context.Context, connectionID uint64, positionIDs []string) ([]models.TradeExecution, error)
	ListExecutionsByInstrument(ctx context.Context, connectionID uint64, instrumentID string) ([]models.TradeExecution, error)

	// Trade ideas
	UpsertTradeIdeaGroups(ctx context.Context, items []models.TradeIdeaGroup) error
	ListTradeIdeaGroups(ctx context.Context, params ListTradeIdeasParams) ([]models.TradeIdeaGroup, error)
	GetTradeIdeaGroupIDByKey(ctx context.Context, connectionID uint64, positionKey string) (uint64, error)
	DeleteInstrumentEpisodesNotIn(ctx context.Context, connectionID uint64, instrumentID string, keepKeys []string) (int64, error)

	// Realization events
	UpsertRealizationEvents(ctx context.Context, items []models.TradeRealizationEvent) (upserted int, created int, err error)
	ListRealizationEvents(ctx context.Context, params ListRealizationsParams) ([]models.TradeRealizationEvent, error)
	ListRealizationEventsByPositionIDs(ctx context.Context, connectionID uint64, positionIDs []string) ([]models.TradeRealizationEvent, error)

	// Sync bookkeeping
	GetSyncState(ctx context.Context, connectionID uint64) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
}
