package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traderlaunchpad/internal/models"
	"traderlaunchpad/internal/repository"
)

type Store struct {
	db    *gorm.DB
	batch int
}

// New builds a Store. batchSize bounds CreateInBatches chunks; zero or
// negative falls back to 200.
func New(db *gorm.DB, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Store{db: db, batch: batchSize}
}

// --- Connections -------------------------------------------------------------

func (s *Store) GetConnection(ctx context.Context, organizationID, userID string) (*models.BrokerConnection, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	organizationID = strings.TrimSpace(organizationID)
	userID = strings.TrimSpace(userID)
	if organizationID == "" || userID == "" {
		return nil, nil
	}
	var item models.BrokerConnection
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetConnectionByID(ctx context.Context, id uint64) (*models.BrokerConnection, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.BrokerConnection
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListConnectionsByStatus(ctx context.Context, status string, limit int) ([]models.BrokerConnection, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.BrokerConnection{})
	if strings.TrimSpace(status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(status))
	}
	var items []models.BrokerConnection
	if err := query.Order("id asc").Limit(normalizeLimit(limit, 200)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertConnection(ctx context.Context, item *models.BrokerConnection) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.OrganizationID) == "" || strings.TrimSpace(item.UserID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "organization_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider", "environment", "server", "jwt_host",
			"account_id", "acc_num", "email",
			"access_token_enc", "refresh_token_enc",
			"access_token_expires_at", "refresh_token_expires_at",
			"status", "updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) UpdateConnectionTokens(ctx context.Context, id uint64, accessEnc, refreshEnc string, accessExpiresAt, refreshExpiresAt *time.Time, jwtHost *string) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	updates := map[string]any{
		"access_token_enc":  accessEnc,
		"refresh_token_enc": refreshEnc,
		"updated_at":        time.Now().UTC(),
	}
	if accessExpiresAt != nil {
		updates["access_token_expires_at"] = *accessExpiresAt
	}
	if refreshExpiresAt != nil {
		updates["refresh_token_expires_at"] = *refreshExpiresAt
	}
	if jwtHost != nil && strings.TrimSpace(*jwtHost) != "" {
		updates["jwt_host"] = strings.TrimSpace(*jwtHost)
	}
	return s.db.WithContext(ctx).
		Model(&models.BrokerConnection{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) UpdateConnectionSyncState(ctx context.Context, id uint64, params repository.UpdateSyncStateParams) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if params.Status != nil {
		updates["status"] = *params.Status
	}
	if params.LastError != nil {
		updates["last_error"] = *params.LastError
	}
	if params.LastSyncAt != nil {
		updates["last_sync_at"] = *params.LastSyncAt
	}
	if params.LastBrokerActivityAt != nil {
		updates["last_broker_activity_at"] = *params.LastBrokerActivityAt
	}
	if params.HasOpenTrade != nil {
		updates["has_open_trade"] = *params.HasOpenTrade
	}
	return s.db.WithContext(ctx).
		Model(&models.BrokerConnection{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// AcquireConnectionLease claims the per-connection sync lease when it is
// free, expired, or already held by owner. Returns false when another worker
// holds it.
func (s *Store) AcquireConnectionLease(ctx context.Context, id uint64, owner string, until time.Time) (bool, error) {
	if s == nil || s.db == nil || id == 0 || strings.TrimSpace(owner) == "" {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.BrokerConnection{}).
		Where("id = ?", id).
		Where("sync_lease_owner IS NULL OR sync_lease_until < ? OR sync_lease_owner = ?", time.Now().UTC(), owner).
		Updates(map[string]any{
			"sync_lease_owner": owner,
			"sync_lease_until": until,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ReleaseConnectionLease(ctx context.Context, id uint64, owner string) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.BrokerConnection{}).
		Where("id = ? AND sync_lease_owner = ?", id, owner).
		Updates(map[string]any{
			"sync_lease_owner": nil,
			"sync_lease_until": nil,
		}).Error
}

// --- Broker snapshots --------------------------------------------------------

func (s *Store) UpsertTradeOrders(ctx context.Context, items []models.TradeOrder) (int, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"instrument_id", "symbol", "side", "order_type", "status", "position_id",
			"qty", "filled_qty", "price", "avg_price", "placed_at", "raw", "updated_at",
		}),
	}).CreateInBatches(items, s.batch).Error
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (s *Store) UpsertTradeOrderHistory(ctx context.Context, items []models.TradeOrderHistory) (int, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"instrument_id", "symbol", "side", "order_type", "status", "position_id",
			"qty", "filled_qty", "price", "avg_price", "placed_at", "raw", "updated_at",
		}),
	}).CreateInBatches(items, s.batch).Error
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (s *Store) UpsertTradePositions(ctx context.Context, items []models.TradePosition) (int, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"instrument_id", "symbol", "side", "qty", "avg_price", "unrealized_pl",
			"opened_at", "raw", "updated_at",
		}),
	}).CreateInBatches(items, s.batch).Error
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// DeleteTradePositionsNotIn removes rows absent from the latest snapshot; the
// positions feed is authoritative for what is currently open.
func (s *Store) DeleteTradePositionsNotIn(ctx context.Context, connectionID uint64, keepExternalIDs []string) (int64, error) {
	if s == nil || s.db == nil || connectionID == 0 {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Where("connection_id = ?", connectionID)
	keep := cleanStrings(keepExternalIDs)
	if len(keep) > 0 {
		query = query.Where("external_id NOT IN ?", keep)
	}
	res := query.Delete(&models.TradePosition{})
	return res.RowsAffected, res.Error
}

func (s *Store) ListOpenPositionExternalIDs(ctx context.Context, connectionID uint64) ([]string, error) {
	if s == nil || s.db == nil || connectionID == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.TradePosition{}).
		Where("connection_id = ?", connectionID).
		Pluck("external_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) UpsertAccountState(ctx context.Context, item *models.AccountState) error {
	if s == nil || s.db == nil || item == nil || item.ConnectionID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"balance", "equity", "open_pl", "margin_used", "free_margin",
			"currency_code", "raw", "captured_at", "updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetAccountState(ctx context.Context, connectionID uint64) (*models.AccountState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.AccountState
	err := s.db.WithContext(ctx).Where("connection_id = ?", connectionID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// --- Executions --------------------------------------------------------------

// UpsertTradeExecutions reports both totals: `created` counts rows whose
// external id was not stored before, which is what drives the broker-activity
// watermark.
func (s *Store) UpsertTradeExecutions(ctx context.Context, items []models.TradeExecution) (int, int, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, 0, nil
	}
	connectionID := items[0].ConnectionID
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ExternalID)
	}
	var existing []string
	err := s.db.WithContext(ctx).
		Model(&models.TradeExecution{}).
		Where("connection_id = ? AND external_id IN ?", connectionID, ids).
		Pluck("external_id", &existing).Error
	if err != nil {
		return 0, 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	created := 0
	for _, item := range items {
		if _, ok := seen[item.ExternalID]; !ok {
			created++
		}
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"order_id", "position_id", "instrument_id", "symbol", "side",
			"qty", "price", "fee", "executed_at", "raw",
		}),
	}).CreateInBatches(items, s.batch).Error
	if err != nil {
		return 0, 0, err
	}
	return len(items), created, nil
}

func (s *Store) ListExecutions(ctx context.Context, params repository.ListExecutionsParams) ([]models.TradeExecution, error) {
	if s == nil || s.db == nil || params.ConnectionID == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.TradeExecution{}).
		Where("connection_id = ?", params.ConnectionID)
	if params.PositionID != nil && strings.TrimSpace(*params.PositionID) != "" {
		query = query.Where("position_id = ?", strings.TrimSpace(*params.PositionID))
	}
	if params.InstrumentID != nil && strings.TrimSpace(*params.InstrumentID) != "" {
		query = query.Where("instrument_id = ?", strings.TrimSpace(*params.InstrumentID))
	}
	var items []models.TradeExecution
	err := query.
		Order("executed_at desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListExecutionsByPositionIDs(ctx context.Context, connectionID uint64, positionIDs []string) ([]models.TradeExecution, error) {
	if s == nil || s.db == nil || connectionID == 0 {
		return nil, nil
	}
	ids := cleanStrings(positionIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.TradeExecution
	err := s.db.WithContext(ctx).
		Where("connection_id = ? AND position_id IN ?", connectionID, ids).
		Order("executed_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListExecutionsByInstrument(ctx context.Context, connectionID uint64, instrumentID string) ([]models.TradeExecution, error) {
	if s == nil || s.db == nil || connectionID == 0 {
		return nil, nil
	}
	instrumentID = strings.TrimSpace(instrumentID)
	if instrumentID == "" {
		return nil, nil
	}
	var items []models.TradeExecution
	err := s.db.WithContext(ctx).
		Where("connection_id = ? AND instrument_id = ?", connectionID, instrumentID).
		Order("executed_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Trade ideas -------------------------------------------------------------

func (s *Store) UpsertTradeIdeaGroups(ctx context.Context, items []models.TradeIdeaGroup) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "position_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"instrument_id", "symbol", "direction", "status",
			"net_qty", "avg_entry_price", "realized_pnl", "fees",
			"execution_count", "opened_at", "closed_at", "last_execution_at",
			"updated_at",
		}),
	}).CreateInBatches(items, s.batch).Error
}

func (s *Store) ListTradeIdeaGroups(ctx context.Context, params repository.ListTradeIdeasParams) ([]models.TradeIdeaGroup, error) {
	if s == nil || s.db == nil || params.ConnectionID == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.TradeIdeaGroup{}).
		Where("connection_id = ?", params.ConnectionID)
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.InstrumentID != nil && strings.TrimSpace(*params.InstrumentID) != "" {
		query = query.Where("instrument_id = ?", strings.TrimSpace(*params.InstrumentID))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "last_execution_at")
	var items []models.TradeIdeaGroup
	err := query.
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetTradeIdeaGroupIDByKey(ctx context.Context, connectionID uint64, positionKey string) (uint64, error) {
	if s == nil || s.db == nil || connectionID == 0 || strings.TrimSpace(positionKey) == "" {
		return 0, nil
	}
	var item models.TradeIdeaGroup
	err := s.db.WithContext(ctx).
		Select("id").
		Where("connection_id = ? AND position_key = ?", connectionID, positionKey).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return item.ID, nil
}

// DeleteInstrumentEpisodesNotIn drops stale synthetic episode groups after an
// instrument rebuild. Groups keyed by a real broker position id are kept.
func (s *Store) DeleteInstrumentEpisodesNotIn(ctx context.Context, connectionID uint64, instrumentID string, keepKeys []string) (int64, error) {
	if s == nil || s.db == nil || connectionID == 0 {
		return 0, nil
	}
	instrumentID = strings.TrimSpace(instrumentID)
	if instrumentID == "" {
		return 0, nil
	}
	query := s.db.WithContext(ctx).
		Where("connection_id = ? AND instrument_id = ?", connectionID, instrumentID).
		Where("position_key LIKE ?", "inst:%")
	keep := cleanStrings(keepKeys)
	if len(keep) > 0 {
		query = query.Where("position_key NOT IN ?", keep)
	}
	res := query.Delete(&models.TradeIdeaGroup{})
	return res.RowsAffected, res.Error
}

// --- Realization events ------------------------------------------------------

func (s *Store) UpsertRealizationEvents(ctx context.Context, items []models.TradeRealizationEvent) (int, int, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, 0, nil
	}
	connectionID := items[0].ConnectionID
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ExternalID)
	}
	var existing []string
	err := s.db.WithContext(ctx).
		Model(&models.TradeRealizationEvent{}).
		Where("connection_id = ? AND external_id IN ?", connectionID, ids).
		Pluck("external_id", &existing).Error
	if err != nil {
		return 0, 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	created := 0
	for _, item := range items {
		if _, ok := seen[item.ExternalID]; !ok {
			created++
		}
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trade_idea_group_id", "position_id", "order_id", "instrument_id",
			"symbol", "side", "qty_closed", "open_price", "close_price",
			"profit", "commission", "swap", "opened_at", "closed_at", "raw",
		}),
	}).CreateInBatches(items, s.batch).Error
	if err != nil {
		return 0, 0, err
	}
	return len(items), created, nil
}

func (s *Store) ListRealizationEvents(ctx context.Context, params repository.ListRealizationsParams) ([]models.TradeRealizationEvent, error) {
	if s == nil || s.db == nil || params.ConnectionID == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.TradeRealizationEvent{}).
		Where("connection_id = ?", params.ConnectionID)
	if params.PositionID != nil && strings.TrimSpace(*params.PositionID) != "" {
		query = query.Where("position_id = ?", strings.TrimSpace(*params.PositionID))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("closed_at >= ?", *params.Since)
	}
	var items []models.TradeRealizationEvent
	err := query.
		Order("closed_at desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListRealizationEventsByPositionIDs(ctx context.Context, connectionID uint64, positionIDs []string) ([]models.TradeRealizationEvent, error) {
	if s == nil || s.db == nil || connectionID == 0 {
		return nil, nil
	}
	ids := cleanStrings(positionIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.TradeRealizationEvent
	err := s.db.WithContext(ctx).
		Where("connection_id = ? AND position_id IN ?", connectionID, ids).
		Order("closed_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Sync bookkeeping --------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, connectionID uint64) (*models.SyncState, error) {
	if s == nil || s.db == nil || connectionID == 0 {
		return nil, nil
	}
	var item models.SyncState
	err := s.db.WithContext(ctx).Where("connection_id = ?", connectionID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s == nil || s.db == nil || state == nil || state.ConnectionID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_success_at", "last_attempt_at", "last_error", "stats_json",
		}),
	}).Create(state).Error
}

// --- helpers -----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
