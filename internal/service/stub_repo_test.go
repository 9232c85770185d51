package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"traderlaunchpad/internal/models"
	"traderlaunchpad/internal/repository"
)

// stubRepo is an in-memory repository for service tests.
type stubRepo struct {
	conns      map[uint64]*models.BrokerConnection
	orders     map[string]models.TradeOrder
	history    map[string]models.TradeOrderHistory
	positions  map[string]models.TradePosition
	executions map[string]models.TradeExecution
	groups     map[string]models.TradeIdeaGroup
	events     map[string]models.TradeRealizationEvent
	states     map[uint64]*models.AccountState
	syncStates map[uint64]*models.SyncState

	nextGroupID  uint64
	tokenUpdates int
	lastAccess   string
	lastRefresh  string
	lastJWTHost  string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		conns:      map[uint64]*models.BrokerConnection{},
		orders:     map[string]models.TradeOrder{},
		history:    map[string]models.TradeOrderHistory{},
		positions:  map[string]models.TradePosition{},
		executions: map[string]models.TradeExecution{},
		groups:     map[string]models.TradeIdeaGroup{},
		events:     map[string]models.TradeRealizationEvent{},
		states:     map[uint64]*models.AccountState{},
		syncStates: map[uint64]*models.SyncState{},
	}
}

func key(connectionID uint64, external string) string {
	return fmt.Sprintf("%d:%s", connectionID, external)
}

func (r *stubRepo) GetConnection(ctx context.Context, organizationID, userID string) (*models.BrokerConnection, error) {
	for _, c := range r.conns {
		if c.OrganizationID == organizationID && c.UserID == userID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) GetConnectionByID(ctx context.Context, id uint64) (*models.BrokerConnection, error) {
	return r.conns[id], nil
}

func (r *stubRepo) ListConnectionsByStatus(ctx context.Context, status string, limit int) ([]models.BrokerConnection, error) {
	var out []models.BrokerConnection
	for _, c := range r.conns {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubRepo) UpsertConnection(ctx context.Context, item *models.BrokerConnection) error {
	if item.ID == 0 {
		item.ID = uint64(len(r.conns) + 1)
	}
	r.conns[item.ID] = item
	return nil
}

func (r *stubRepo) UpdateConnectionTokens(ctx context.Context, id uint64, accessEnc, refreshEnc string, accessExpiresAt, refreshExpiresAt *time.Time, jwtHost *string) error {
	r.tokenUpdates++
	r.lastAccess = accessEnc
	r.lastRefresh = refreshEnc
	if jwtHost != nil {
		r.lastJWTHost = *jwtHost
	}
	if c, ok := r.conns[id]; ok {
		c.AccessTokenEnc = accessEnc
		c.RefreshTokenEnc = refreshEnc
		if jwtHost != nil {
			c.JWTHost = *jwtHost
		}
	}
	return nil
}

func (r *stubRepo) UpdateConnectionSyncState(ctx context.Context, id uint64, params repository.UpdateSyncStateParams) error {
	c, ok := r.conns[id]
	if !ok {
		return nil
	}
	if params.Status != nil {
		c.Status = *params.Status
	}
	if params.LastError != nil {
		if *params.LastError == "" {
			c.LastError = nil
		} else {
			v := *params.LastError
			c.LastError = &v
		}
	}
	if params.LastSyncAt != nil {
		c.LastSyncAt = params.LastSyncAt
	}
	if params.LastBrokerActivityAt != nil {
		c.LastBrokerActivityAt = params.LastBrokerActivityAt
	}
	if params.HasOpenTrade != nil {
		c.HasOpenTrade = *params.HasOpenTrade
	}
	return nil
}

func (r *stubRepo) AcquireConnectionLease(ctx context.Context, id uint64, owner string, until time.Time) (bool, error) {
	c, ok := r.conns[id]
	if !ok {
		return false, nil
	}
	now := time.Now()
	if c.SyncLeaseOwner == nil || *c.SyncLeaseOwner == owner || (c.SyncLeaseUntil != nil && c.SyncLeaseUntil.Before(now)) {
		c.SyncLeaseOwner = &owner
		c.SyncLeaseUntil = &until
		return true, nil
	}
	return false, nil
}

func (r *stubRepo) ReleaseConnectionLease(ctx context.Context, id uint64, owner string) error {
	c, ok := r.conns[id]
	if ok && c.SyncLeaseOwner != nil && *c.SyncLeaseOwner == owner {
		c.SyncLeaseOwner = nil
		c.SyncLeaseUntil = nil
	}
	return nil
}

func (r *stubRepo) UpsertTradeOrders(ctx context.Context, items []models.TradeOrder) (int, error) {
	for _, it := range items {
		r.orders[key(it.ConnectionID, it.ExternalID)] = it
	}
	return len(items), nil
}

func (r *stubRepo) UpsertTradeOrderHistory(ctx context.Context, items []models.TradeOrderHistory) (int, error) {
	for _, it := range items {
		r.history[key(it.ConnectionID, it.ExternalID)] = it
	}
	return len(items), nil
}

func (r *stubRepo) UpsertTradePositions(ctx context.Context, items []models.TradePosition) (int, error) {
	for _, it := range items {
		r.positions[key(it.ConnectionID, it.ExternalID)] = it
	}
	return len(items), nil
}

func (r *stubRepo) DeleteTradePositionsNotIn(ctx context.Context, connectionID uint64, keepExternalIDs []string) (int64, error) {
	keep := map[string]bool{}
	for _, id := range keepExternalIDs {
		keep[id] = true
	}
	var removed int64
	for k, p := range r.positions {
		if p.ConnectionID == connectionID && !keep[p.ExternalID] {
			delete(r.positions, k)
			removed++
		}
	}
	return removed, nil
}

func (r *stubRepo) ListOpenPositionExternalIDs(ctx context.Context, connectionID uint64) ([]string, error) {
	var out []string
	for _, p := range r.positions {
		if p.ConnectionID == connectionID {
			out = append(out, p.ExternalID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *stubRepo) UpsertAccountState(ctx context.Context, item *models.AccountState) error {
	r.states[item.ConnectionID] = item
	return nil
}

func (r *stubRepo) GetAccountState(ctx context.Context, connectionID uint64) (*models.AccountState, error) {
	return r.states[connectionID], nil
}

func (r *stubRepo) UpsertTradeExecutions(ctx context.Context, items []models.TradeExecution) (int, int, error) {
	created := 0
	for _, it := range items {
		k := key(it.ConnectionID, it.ExternalID)
		if _, ok := r.executions[k]; !ok {
			created++
		}
		r.executions[k] = it
	}
	return len(items), created, nil
}

func (r *stubRepo) ListExecutions(ctx context.Context, params repository.ListExecutionsParams) ([]models.TradeExecution, error) {
	var out []models.TradeExecution
	for _, e := range r.executions {
		if e.ConnectionID != params.ConnectionID {
			continue
		}
		if params.PositionID != nil && e.PositionID != *params.PositionID {
			continue
		}
		if params.InstrumentID != nil && e.InstrumentID != *params.InstrumentID {
			continue
		}
		out = append(out, e)
	}
	sortExecutions(out)
	return out, nil
}

func (r *stubRepo) ListExecutionsByPositionIDs(ctx context.Context, connectionID uint64, positionIDs []string) ([]models.TradeExecution, error) {
	want := map[string]bool{}
	for _, id := range positionIDs {
		want[id] = true
	}
	var out []models.TradeExecution
	for _, e := range r.executions {
		if e.ConnectionID == connectionID && want[e.PositionID] {
			out = append(out, e)
		}
	}
	sortExecutions(out)
	return out, nil
}

func (r *stubRepo) ListExecutionsByInstrument(ctx context.Context, connectionID uint64, instrumentID string) ([]models.TradeExecution, error) {
	var out []models.TradeExecution
	for _, e := range r.executions {
		if e.ConnectionID == connectionID && e.InstrumentID == instrumentID {
			out = append(out, e)
		}
	}
	sortExecutions(out)
	return out, nil
}

func (r *stubRepo) UpsertTradeIdeaGroups(ctx context.Context, items []models.TradeIdeaGroup) error {
	for i := range items {
		k := key(items[i].ConnectionID, items[i].PositionKey)
		if existing, ok := r.groups[k]; ok {
			items[i].ID = existing.ID
		} else {
			r.nextGroupID++
			items[i].ID = r.nextGroupID
		}
		r.groups[k] = items[i]
	}
	return nil
}

func (r *stubRepo) GetTradeIdeaGroupIDByKey(ctx context.Context, connectionID uint64, positionKey string) (uint64, error) {
	if g, ok := r.groups[key(connectionID, positionKey)]; ok {
		return g.ID, nil
	}
	return 0, nil
}

func (r *stubRepo) ListTradeIdeaGroups(ctx context.Context, params repository.ListTradeIdeasParams) ([]models.TradeIdeaGroup, error) {
	var out []models.TradeIdeaGroup
	for _, g := range r.groups {
		if g.ConnectionID != params.ConnectionID {
			continue
		}
		if params.Status != nil && g.Status != *params.Status {
			continue
		}
		if params.InstrumentID != nil && g.InstrumentID != *params.InstrumentID {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubRepo) DeleteInstrumentEpisodesNotIn(ctx context.Context, connectionID uint64, instrumentID string, keepKeys []string) (int64, error) {
	keep := map[string]bool{}
	for _, k := range keepKeys {
		keep[k] = true
	}
	var removed int64
	for k, g := range r.groups {
		if g.ConnectionID == connectionID && g.InstrumentID == instrumentID &&
			strings.HasPrefix(g.PositionKey, "inst:") && !keep[g.PositionKey] {
			delete(r.groups, k)
			removed++
		}
	}
	return removed, nil
}

func (r *stubRepo) UpsertRealizationEvents(ctx context.Context, items []models.TradeRealizationEvent) (int, int, error) {
	created := 0
	for _, it := range items {
		k := key(it.ConnectionID, it.ExternalID)
		if _, ok := r.events[k]; !ok {
			created++
		}
		r.events[k] = it
	}
	return len(items), created, nil
}

func (r *stubRepo) ListRealizationEvents(ctx context.Context, params repository.ListRealizationsParams) ([]models.TradeRealizationEvent, error) {
	var out []models.TradeRealizationEvent
	for _, e := range r.events {
		if e.ConnectionID != params.ConnectionID {
			continue
		}
		if params.PositionID != nil && e.PositionID != *params.PositionID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *stubRepo) ListRealizationEventsByPositionIDs(ctx context.Context, connectionID uint64, positionIDs []string) ([]models.TradeRealizationEvent, error) {
	want := map[string]bool{}
	for _, id := range positionIDs {
		want[id] = true
	}
	var out []models.TradeRealizationEvent
	for _, e := range r.events {
		if e.ConnectionID == connectionID && want[e.PositionID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubRepo) GetSyncState(ctx context.Context, connectionID uint64) (*models.SyncState, error) {
	return r.syncStates[connectionID], nil
}

func (r *stubRepo) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	r.syncStates[state.ConnectionID] = state
	return nil
}

func sortExecutions(execs []models.TradeExecution) {
	sort.Slice(execs, func(i, j int) bool {
		if execs[i].ExecutedAt.Equal(execs[j].ExecutedAt) {
			return execs[i].ExternalID < execs[j].ExternalID
		}
		return execs[i].ExecutedAt.Before(execs[j].ExecutedAt)
	})
}

var _ repository.Repository = (*stubRepo)(nil)
