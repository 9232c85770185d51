package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"

	"traderlaunchpad/internal/client/tradelocker"
	"traderlaunchpad/internal/config"
	"traderlaunchpad/internal/models"
	"traderlaunchpad/internal/repository"
	"traderlaunchpad/internal/secrets"
)

var (
	ErrConnectionNotFound = errors.New("broker connection not found")
	ErrInstrumentNotFound = errors.New("instrument not found")
)

// SyncOptions selects the connection and tunes one sync run. SecretsKey comes
// from the caller; it is never read from config or hardcoded here.
type SyncOptions struct {
	OrganizationID string
	UserID         string
	ConnectionID   uint64

	Limit        int
	SecretsKey   string
	TokenStorage string
}

type SyncResult struct {
	ConnectionID uint64 `json:"connectionId"`
	Skipped      bool   `json:"skipped,omitempty"`
	SkipReason   string `json:"skipReason,omitempty"`

	OrdersUpserted       int `json:"ordersUpserted"`
	OrderHistoryUpserted int `json:"orderHistoryUpserted"`
	PositionsUpserted    int `json:"positionsUpserted"`
	PositionsRemoved     int `json:"positionsRemoved"`
	ExecutionsUpserted   int `json:"executionsUpserted"`
	ExecutionsNew        int `json:"executionsNew"`
	RealizationsUpserted int `json:"realizationsUpserted"`
	RealizationsNew      int `json:"realizationsNew"`
	GroupsTouched        int `json:"groupsTouched"`

	TradeIdeaGroupIDs []uint64 `json:"tradeIdeaGroupIds,omitempty"`
}

// BrokerSyncService pulls one connection's trading data from TradeLocker and
// reconciles the local mirror: snapshots, executions, realization events and
// the trade-idea groups rebuilt from them.
type BrokerSyncService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Ideas  *TradeIdeaService

	cfg     config.Config
	http    *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

func NewBrokerSyncService(repo repository.Repository, logger *zap.Logger, cfg config.Config) *BrokerSyncService {
	rps := cfg.TradeLocker.RequestsPerSec
	if rps <= 0 {
		rps = 8
	}
	burst := cfg.TradeLocker.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.TradeLocker.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &BrokerSyncService{
		Repo:    repo,
		Logger:  logger,
		Ideas:   &TradeIdeaService{Repo: repo, Logger: logger},
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		now:     time.Now,
	}
}

// Sync runs one full pull for a connection. Individual resource failures are
// logged and skipped so one flaky endpoint does not abort the run; auth and
// account-resolution failures do.
func (s *BrokerSyncService) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("broker sync service not initialized")
	}
	startedAt := s.now().UTC()

	conn, err := s.loadConnection(ctx, opts)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{ConnectionID: conn.ID}
	if conn.Status != "connected" {
		result.Skipped = true
		result.SkipReason = "status " + conn.Status
		if s.Logger != nil {
			s.Logger.Debug("sync skipped", zap.Uint64("connection_id", conn.ID), zap.String("status", conn.Status))
		}
		return result, nil
	}

	bs, err := s.openSession(ctx, conn, opts.SecretsKey, opts.TokenStorage)
	if err != nil {
		return nil, s.recordFailure(ctx, conn.ID, startedAt, err)
	}
	session, accountID, storageMode := bs.session, bs.accountID, bs.storageMode

	stats := newSyncStats(startedAt)

	configPayload, _ := s.fetchPayload(ctx, session, "config", tradelocker.ConfigPaths(), stats)
	ordersRows, _ := s.fetchRows(ctx, session, "orders", tradelocker.OrderPaths(accountID), configPayload, stats, "orders", "data", "orderRows")
	filledRows, _ := s.fetchRows(ctx, session, "filled_orders", tradelocker.ExecutionPaths(accountID), configPayload, stats, "filledOrders", "executions", "fills", "data")
	historyRows, _ := s.fetchRows(ctx, session, "orders_history", tradelocker.OrderHistoryPaths(accountID), configPayload, stats, "ordersHistory", "orders", "data")
	positionRows, positionsErr := s.fetchRows(ctx, session, "positions", tradelocker.PositionPaths(accountID), configPayload, stats, "positions", "data")
	closedRows, _ := s.fetchRows(ctx, session, "closed_trades", tradelocker.ClosedTradePaths(accountID), configPayload, stats, "closedTrades", "trades", "history", "data")

	nowRef := s.now().UTC()
	orders := tradelocker.NormalizeOrders(ordersRows)
	history := tradelocker.NormalizeOrders(historyRows)
	positions := tradelocker.NormalizePositions(positionRows)
	executions := tradelocker.NormalizeExecutions(filledRows, nowRef)
	executions = capExecutions(executions, s.effectiveLimit(opts.Limit))

	resolver := newSymbolResolver(session, accountID, s.Logger)
	s.backfillSymbols(ctx, resolver, orders, history, positions, executions)

	result.OrdersUpserted, err = s.Repo.UpsertTradeOrders(ctx, ordersToModels(conn.ID, orders))
	if err != nil {
		return nil, s.recordFailure(ctx, conn.ID, startedAt, err)
	}
	result.OrderHistoryUpserted, err = s.Repo.UpsertTradeOrderHistory(ctx, historyToModels(conn.ID, history))
	if err != nil {
		return nil, s.recordFailure(ctx, conn.ID, startedAt, err)
	}
	result.ExecutionsUpserted, result.ExecutionsNew, err = s.Repo.UpsertTradeExecutions(ctx, executionsToModels(conn.ID, executions))
	if err != nil {
		return nil, s.recordFailure(ctx, conn.ID, startedAt, err)
	}
	// The positions feed is an authoritative snapshot only when it actually
	// arrived. A failed fetch keeps the stored open set, so a transient
	// provider error never wipes positions or flips open groups closed.
	var openIDs []string
	if positionsErr != nil {
		if s.Logger != nil {
			s.Logger.Warn("positions fetch failed, keeping stored snapshot",
				zap.Uint64("connection_id", conn.ID), zap.Error(positionsErr))
		}
		openIDs, err = s.Repo.ListOpenPositionExternalIDs(ctx, conn.ID)
		if err != nil {
			return nil, s.recordFailure(ctx, conn.ID, startedAt, err)
		}
	} else {
		result.PositionsUpserted, err = s.Repo.UpsertTradePositions(ctx, positionsToModels(conn.ID, positions))
		if err != nil {
			return nil, s.recordFailure(ctx, conn.ID, startedAt, err)
		}
		openIDs = make([]string, 0, len(positions))
		for _, p := range positions {
			openIDs = append(openIDs, p.ExternalPositionID)
		}
		removed, err := s.Repo.DeleteTradePositionsNotIn(ctx, conn.ID, openIDs)
		if err != nil {
			return nil, s.recordFailure(ctx, conn.ID, startedAt, err)
		}
		result.PositionsRemoved = int(removed)
	}

	// Realization events land before group rebuilds so the rebuilt groups see
	// them when totalling realized P&L.
	events := realizationFromRows(conn.ID, closedRows, nowRef)
	if len(events) == 0 {
		events = realizationFromHistory(conn.ID, historyRows, nowRef)
	}
	if len(events) > 0 {
		result.RealizationsUpserted, result.RealizationsNew, err = s.Repo.UpsertRealizationEvents(ctx, events)
		if err != nil {
			return nil, s.recordFailure(ctx, conn.ID, startedAt, err)
		}
	}

	groupIDs := s.rebuildIdeas(ctx, conn.ID, executions, openIDs, events)
	result.GroupsTouched = len(groupIDs)
	result.TradeIdeaGroupIDs = groupIDs

	s.syncAccountState(ctx, session, conn.ID, accountID, configPayload, stats)

	if s.cfg.Sync.UpgradeTokens && storageMode == TokenStorageEnc && !secrets.IsEncrypted(conn.AccessTokenEnc) {
		if err := session.persistTokens(ctx, conn.AccessTokenExpiresAt); err != nil && s.Logger != nil {
			s.Logger.Warn("token storage upgrade failed", zap.Error(err), zap.Uint64("connection_id", conn.ID))
		}
	}

	finishedAt := s.now().UTC()
	status := "connected"
	clearErr := ""
	params := repository.UpdateSyncStateParams{
		Status:     &status,
		LastError:  &clearErr,
		LastSyncAt: &finishedAt,
	}
	if positionsErr == nil {
		hasOpen := len(positions) > 0
		params.HasOpenTrade = &hasOpen
	}
	if result.ExecutionsNew > 0 {
		params.LastBrokerActivityAt = &finishedAt
	}
	if err := s.Repo.UpdateConnectionSyncState(ctx, conn.ID, params); err != nil && s.Logger != nil {
		s.Logger.Warn("updating connection sync state failed", zap.Error(err), zap.Uint64("connection_id", conn.ID))
	}

	stats.finish(result)
	s.saveSyncState(ctx, conn.ID, startedAt, finishedAt, stats, nil)

	if s.Logger != nil {
		s.Logger.Info("broker sync complete",
			zap.Uint64("connection_id", conn.ID),
			zap.Int("orders", result.OrdersUpserted),
			zap.Int("executions", result.ExecutionsUpserted),
			zap.Int("executions_new", result.ExecutionsNew),
			zap.Int("positions", result.PositionsUpserted),
			zap.Int("groups", result.GroupsTouched),
			zap.Duration("took", finishedAt.Sub(startedAt)),
		)
	}
	return result, nil
}

func (s *BrokerSyncService) loadConnection(ctx context.Context, opts SyncOptions) (*models.BrokerConnection, error) {
	var (
		conn *models.BrokerConnection
		err  error
	)
	if opts.ConnectionID != 0 {
		conn, err = s.Repo.GetConnectionByID(ctx, opts.ConnectionID)
	} else {
		conn, err = s.Repo.GetConnection(ctx, opts.OrganizationID, opts.UserID)
	}
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrConnectionNotFound
	}
	return conn, nil
}

// brokerSession is an authenticated TradeLocker session bound to the
// connection's resolved trading account.
type brokerSession struct {
	session     *tokenSession
	accountID   string
	accNum      string
	storageMode string
}

// openSession decrypts the stored tokens, builds a client against the
// connection's environment and resolves the trading account, persisting the
// resolved account id back onto the connection when it changed.
func (s *BrokerSyncService) openSession(ctx context.Context, conn *models.BrokerConnection, secretsKey, tokenStorage string) (*brokerSession, error) {
	storageMode := tokenStorage
	if storageMode == "" {
		storageMode = TokenStorageRaw
		if secrets.IsEncrypted(conn.AccessTokenEnc) || secrets.IsEncrypted(conn.RefreshTokenEnc) {
			storageMode = TokenStorageEnc
		}
	}
	accessToken, err := secrets.Decrypt(conn.AccessTokenEnc, secretsKey)
	if err != nil {
		return nil, err
	}
	refreshToken, err := secrets.Decrypt(conn.RefreshTokenEnc, secretsKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(accessToken) == "" || strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("connection has no stored tokens")
	}

	baseURL := tradelocker.ResolveBaseURL(s.cfg.TradeLocker.DemoBaseURL, s.cfg.TradeLocker.LiveBaseURL, conn.Environment, conn.JWTHost)
	client := tradelocker.NewClient(s.http, baseURL, s.limiter).WithDeveloperKey(s.cfg.TradeLocker.DeveloperAPIKey)
	session := newTokenSession(client, s.Repo, s.Logger, conn.ID, secretsKey, storageMode, accessToken, refreshToken)

	accounts, err := session.allAccounts(ctx)
	if err != nil {
		return nil, err
	}
	accountID, accNum := resolveAccount(accounts, conn.AccountID, conn.AccNum)
	if accountID == "" {
		return nil, errors.New("no tradable account resolved")
	}
	session.setAccNum(accNum)
	if accountID != conn.AccountID || accNum != conn.AccNum {
		conn.AccountID = accountID
		conn.AccNum = accNum
		if err := s.Repo.UpsertConnection(ctx, conn); err != nil && s.Logger != nil {
			s.Logger.Warn("persisting resolved account failed", zap.Error(err), zap.Uint64("connection_id", conn.ID))
		}
	}
	return &brokerSession{session: session, accountID: accountID, accNum: accNum, storageMode: storageMode}, nil
}

// InstrumentDetails fetches one instrument's detail payload on demand, probing
// the detail endpoints first and falling back to the account catalog.
func (s *BrokerSyncService) InstrumentDetails(ctx context.Context, opts SyncOptions, instrumentID string) (map[string]any, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("broker sync service not initialized")
	}
	instrumentID = strings.TrimSpace(instrumentID)
	if instrumentID == "" {
		return nil, errors.New("instrument id is required")
	}
	conn, err := s.loadConnection(ctx, opts)
	if err != nil {
		return nil, err
	}
	if conn.Status != "connected" {
		return nil, errors.New("connection is " + conn.Status)
	}
	bs, err := s.openSession(ctx, conn, opts.SecretsKey, opts.TokenStorage)
	if err != nil {
		return nil, err
	}
	body, _, err := probeFirst(ctx, bs.session, "instrument_details", tradelocker.InstrumentDetailPaths(instrumentID), s.Logger)
	if err == nil && body != nil {
		if obj, ok := tradelocker.UnwrapD(tradelocker.DecodePayload(body)).(map[string]any); ok {
			return obj, nil
		}
	}
	listBody, err := bs.session.Get(ctx, tradelocker.AccountInstrumentsPath(bs.accountID), "instruments_list")
	if err != nil {
		return nil, err
	}
	row := tradelocker.FindInstrumentInList(tradelocker.DecodePayload(listBody), instrumentID)
	if row == nil {
		return nil, ErrInstrumentNotFound
	}
	return row, nil
}

func (s *BrokerSyncService) effectiveLimit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = s.cfg.Sync.DefaultLimit
	}
	if limit <= 0 {
		limit = 500
	}
	max := s.cfg.Sync.MaxLimit
	if max <= 0 {
		max = 2000
	}
	if limit > max {
		limit = max
	}
	return limit
}

// fetchPayload probes candidates and decodes the winning body. The error
// return distinguishes a failed fetch from a resource that is legitimately
// absent (all candidates 404, nil payload, nil error); failures are recorded
// in stats either way and the caller decides whether the run continues.
func (s *BrokerSyncService) fetchPayload(ctx context.Context, session *tokenSession, reason string, paths []string, stats *syncStats) (any, error) {
	body, attempts, err := probeFirst(ctx, session, reason, paths, s.Logger)
	stats.record(reason, attempts, err)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	return tradelocker.DecodePayload(body), nil
}

// fetchRows probes a tabular resource and zips its rows against the panel's
// column ids from /trade/config.
func (s *BrokerSyncService) fetchRows(ctx context.Context, session *tokenSession, reason string, paths []string, configPayload any, stats *syncStats, panelID string, rowKeys ...string) ([]map[string]any, error) {
	payload, err := s.fetchPayload(ctx, session, reason, paths, stats)
	if err != nil || payload == nil {
		return nil, err
	}
	rows := tradelocker.ExtractRows(payload, append([]string{panelID}, rowKeys...)...)
	columns := tradelocker.ExtractColumns(configPayload, panelID)
	return tradelocker.TableRowsToObjects(rows, columns), nil
}

func (s *BrokerSyncService) backfillSymbols(ctx context.Context, resolver *symbolResolver, orders, history []tradelocker.NormalizedOrder, positions []tradelocker.NormalizedPosition, executions []tradelocker.NormalizedExecution) {
	for i := range orders {
		if orders[i].Symbol == "" && orders[i].InstrumentID != "" {
			orders[i].Symbol = resolver.Resolve(ctx, orders[i].InstrumentID)
		}
	}
	for i := range history {
		if history[i].Symbol == "" && history[i].InstrumentID != "" {
			history[i].Symbol = resolver.Resolve(ctx, history[i].InstrumentID)
		}
	}
	for i := range positions {
		if positions[i].Symbol == "" && positions[i].InstrumentID != "" {
			positions[i].Symbol = resolver.Resolve(ctx, positions[i].InstrumentID)
		}
	}
	for i := range executions {
		if executions[i].Symbol == "" && executions[i].InstrumentID != "" {
			executions[i].Symbol = resolver.Resolve(ctx, executions[i].InstrumentID)
		}
	}
}

// rebuildIdeas recomputes groups for every position touched by this pull and
// for instruments whose executions arrived without a positionId. A failed
// rebuild is logged and skipped so one bad position cannot sink the run.
// Returns the ids of every group touched this run.
func (s *BrokerSyncService) rebuildIdeas(ctx context.Context, connectionID uint64, executions []tradelocker.NormalizedExecution, openPositionIDs []string, events []models.TradeRealizationEvent) []uint64 {
	open := make(map[string]bool, len(openPositionIDs))
	for _, id := range openPositionIDs {
		open[id] = true
	}

	positionIDs := make(map[string]bool)
	instruments := make(map[string]bool)
	for _, e := range executions {
		if e.PositionID != "" {
			positionIDs[e.PositionID] = true
		} else if e.InstrumentID != "" {
			instruments[e.InstrumentID] = true
		}
	}
	for _, ev := range events {
		if ev.PositionID != "" && ev.PositionID != "-" {
			positionIDs[ev.PositionID] = true
		}
	}

	var groupIDs []uint64
	groupIDByKey := make(map[string]uint64)
	for pid := range positionIDs {
		group, err := s.Ideas.RebuildForPosition(ctx, connectionID, pid, open[pid])
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("trade idea rebuild failed",
					zap.Uint64("connection_id", connectionID),
					zap.String("position_id", pid),
					zap.Error(err))
			}
			continue
		}
		if group != nil {
			if id := s.groupID(ctx, connectionID, group); id != 0 {
				groupIDs = append(groupIDs, id)
				groupIDByKey[group.PositionKey] = id
			}
		}
	}
	for inst := range instruments {
		groups, _, err := s.Ideas.RebuildForInstrument(ctx, connectionID, inst)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("instrument episode rebuild failed",
					zap.Uint64("connection_id", connectionID),
					zap.String("instrument_id", inst),
					zap.Error(err))
			}
			continue
		}
		for i := range groups {
			if id := s.groupID(ctx, connectionID, &groups[i]); id != 0 {
				groupIDs = append(groupIDs, id)
				groupIDByKey[groups[i].PositionKey] = id
			}
		}
	}

	if len(events) > 0 && len(groupIDByKey) > 0 {
		linkEventsToGroups(events, groupIDByKey)
		linked := make([]models.TradeRealizationEvent, 0, len(events))
		for _, ev := range events {
			if ev.TradeIdeaGroupID != nil {
				linked = append(linked, ev)
			}
		}
		if len(linked) > 0 {
			if _, _, err := s.Repo.UpsertRealizationEvents(ctx, linked); err != nil && s.Logger != nil {
				s.Logger.Warn("linking realization events failed",
					zap.Uint64("connection_id", connectionID),
					zap.Error(err))
			}
		}
	}

	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i] < groupIDs[j] })
	return groupIDs
}

// groupID returns the database id for a rebuilt group. Conflict updates come
// back with a zero id, so those are resolved by key.
func (s *BrokerSyncService) groupID(ctx context.Context, connectionID uint64, group *models.TradeIdeaGroup) uint64 {
	if group.ID != 0 {
		return group.ID
	}
	id, err := s.Repo.GetTradeIdeaGroupIDByKey(ctx, connectionID, group.PositionKey)
	if err != nil && s.Logger != nil {
		s.Logger.Warn("group id lookup failed",
			zap.Uint64("connection_id", connectionID),
			zap.String("position_key", group.PositionKey),
			zap.Error(err))
	}
	return id
}

func (s *BrokerSyncService) syncAccountState(ctx context.Context, session *tokenSession, connectionID uint64, accountID string, configPayload any, stats *syncStats) {
	payload, err := s.fetchPayload(ctx, session, "account_state", tradelocker.AccountStatePaths(accountID), stats)
	if err != nil || payload == nil {
		return
	}
	columns := tradelocker.ExtractColumns(configPayload, "accountDetails")
	obj := tradelocker.AccountDetailsToObject(payload, columns)
	if obj == nil {
		// Some deployments return the state as a plain object already.
		if m, ok := tradelocker.UnwrapD(payload).(map[string]any); ok {
			obj = m
		}
	}
	if obj == nil {
		return
	}
	raw, _ := json.Marshal(obj)
	state := &models.AccountState{
		ConnectionID: connectionID,
		Balance:      decimal.NewFromFloat(tradelocker.FirstNumber(obj, "balance", "accountBalance")),
		Equity:       decimal.NewFromFloat(tradelocker.FirstNumber(obj, "equity", "projectedBalance")),
		OpenPL:       decimal.NewFromFloat(tradelocker.FirstNumber(obj, "openNetPnL", "openPl", "openPnl", "unrealizedPnl")),
		MarginUsed:   decimal.NewFromFloat(tradelocker.FirstNumber(obj, "marginUsed", "usedMargin", "blockedBalance")),
		FreeMargin:   decimal.NewFromFloat(tradelocker.FirstNumber(obj, "marginAvailable", "freeMargin", "availableFunds")),
		CurrencyCode: tradelocker.FirstString(obj, "currency", "currencyCode"),
		Raw:          raw,
		CapturedAt:   s.now().UTC(),
	}
	if err := s.Repo.UpsertAccountState(ctx, state); err != nil && s.Logger != nil {
		s.Logger.Warn("persisting account state failed", zap.Error(err), zap.Uint64("connection_id", connectionID))
	}
}

// recordFailure stores the failure on the sync state and the connection's
// lastError, then returns the original error for the caller.
func (s *BrokerSyncService) recordFailure(ctx context.Context, connectionID uint64, startedAt time.Time, cause error) error {
	msg := cause.Error()
	_ = s.Repo.UpdateConnectionSyncState(ctx, connectionID, repository.UpdateSyncStateParams{LastError: &msg})
	s.saveSyncState(ctx, connectionID, startedAt, time.Time{}, nil, cause)
	if s.Logger != nil {
		s.Logger.Error("broker sync failed", zap.Uint64("connection_id", connectionID), zap.Error(cause))
	}
	return cause
}

func (s *BrokerSyncService) saveSyncState(ctx context.Context, connectionID uint64, startedAt, finishedAt time.Time, stats *syncStats, cause error) {
	state, err := s.Repo.GetSyncState(ctx, connectionID)
	if err != nil {
		return
	}
	if state == nil {
		state = &models.SyncState{ConnectionID: connectionID}
	}
	attempt := startedAt
	state.LastAttemptAt = &attempt
	if cause != nil {
		msg := cause.Error()
		state.LastError = &msg
	} else {
		state.LastError = nil
		success := finishedAt
		state.LastSuccessAt = &success
	}
	if stats != nil {
		if raw, err := json.Marshal(stats); err == nil {
			state.StatsJSON = datatypes.JSON(raw)
		}
	}
	if err := s.Repo.SaveSyncState(ctx, state); err != nil && s.Logger != nil {
		s.Logger.Warn("saving sync state failed", zap.Error(err), zap.Uint64("connection_id", connectionID))
	}
}

// capExecutions keeps the newest n executions in ascending executedAt order.
func capExecutions(executions []tradelocker.NormalizedExecution, n int) []tradelocker.NormalizedExecution {
	sort.SliceStable(executions, func(i, j int) bool {
		return executions[i].ExecutedAtMs < executions[j].ExecutedAtMs
	})
	if n > 0 && len(executions) > n {
		executions = executions[len(executions)-n:]
	}
	return executions
}

type syncStats struct {
	StartedAt time.Time                 `json:"startedAt"`
	Probes    map[string][]probeAttempt `json:"probes"`
	Errors    map[string]string         `json:"errors,omitempty"`
	Result    *SyncResult               `json:"result,omitempty"`
}

func newSyncStats(startedAt time.Time) *syncStats {
	return &syncStats{
		StartedAt: startedAt,
		Probes:    map[string][]probeAttempt{},
		Errors:    map[string]string{},
	}
}

func (st *syncStats) record(resource string, attempts []probeAttempt, err error) {
	if st == nil {
		return
	}
	st.Probes[resource] = attempts
	if err != nil {
		st.Errors[resource] = err.Error()
	}
}

func (st *syncStats) finish(result *SyncResult) {
	if st != nil {
		st.Result = result
	}
}

func ordersToModels(connectionID uint64, orders []tradelocker.NormalizedOrder) []models.TradeOrder {
	out := make([]models.TradeOrder, 0, len(orders))
	for _, o := range orders {
		item := models.TradeOrder{
			ConnectionID: connectionID,
			ExternalID:   o.ExternalOrderID,
			InstrumentID: o.InstrumentID,
			Symbol:       o.Symbol,
			Side:         o.Side,
			OrderType:    o.OrderType,
			Status:       o.Status,
			PositionID:   o.PositionID,
			Qty:          decimal.NewFromFloat(o.Qty),
			FilledQty:    decimal.NewFromFloat(o.FilledQty),
			Price:        decimal.NewFromFloat(o.Price),
			AvgPrice:     decimal.NewFromFloat(o.AvgPrice),
			Raw:          marshalRaw(o.Raw),
		}
		if o.CreatedAtMs > 0 {
			t := time.UnixMilli(o.CreatedAtMs).UTC()
			item.PlacedAt = &t
		}
		out = append(out, item)
	}
	return out
}

func historyToModels(connectionID uint64, orders []tradelocker.NormalizedOrder) []models.TradeOrderHistory {
	out := make([]models.TradeOrderHistory, 0, len(orders))
	for _, o := range orders {
		item := models.TradeOrderHistory{
			ConnectionID: connectionID,
			ExternalID:   o.ExternalOrderID,
			InstrumentID: o.InstrumentID,
			Symbol:       o.Symbol,
			Side:         o.Side,
			OrderType:    o.OrderType,
			Status:       o.Status,
			PositionID:   o.PositionID,
			Qty:          decimal.NewFromFloat(o.Qty),
			FilledQty:    decimal.NewFromFloat(o.FilledQty),
			Price:        decimal.NewFromFloat(o.Price),
			AvgPrice:     decimal.NewFromFloat(o.AvgPrice),
			Raw:          marshalRaw(o.Raw),
		}
		if o.CreatedAtMs > 0 {
			t := time.UnixMilli(o.CreatedAtMs).UTC()
			item.PlacedAt = &t
		}
		out = append(out, item)
	}
	return out
}

func executionsToModels(connectionID uint64, executions []tradelocker.NormalizedExecution) []models.TradeExecution {
	out := make([]models.TradeExecution, 0, len(executions))
	for _, e := range executions {
		out = append(out, models.TradeExecution{
			ConnectionID: connectionID,
			ExternalID:   e.ExternalExecutionID,
			OrderID:      e.ExternalOrderID,
			PositionID:   e.PositionID,
			InstrumentID: e.InstrumentID,
			Symbol:       e.Symbol,
			Side:         e.Side,
			Qty:          decimal.NewFromFloat(e.Qty),
			Price:        decimal.NewFromFloat(e.Price),
			Fee:          decimal.NewFromFloat(e.Fees),
			ExecutedAt:   time.UnixMilli(e.ExecutedAtMs).UTC(),
			Raw:          marshalRaw(e.Raw),
		})
	}
	return out
}

func positionsToModels(connectionID uint64, positions []tradelocker.NormalizedPosition) []models.TradePosition {
	out := make([]models.TradePosition, 0, len(positions))
	for _, p := range positions {
		item := models.TradePosition{
			ConnectionID: connectionID,
			ExternalID:   p.ExternalPositionID,
			InstrumentID: p.InstrumentID,
			Symbol:       p.Symbol,
			Side:         p.Side,
			Qty:          decimal.NewFromFloat(p.Qty),
			AvgPrice:     decimal.NewFromFloat(p.AvgPrice),
			UnrealizedPL: decimal.NewFromFloat(p.UnrealizedPL),
			Raw:          marshalRaw(p.Raw),
		}
		if p.OpenedAtMs > 0 {
			t := time.UnixMilli(p.OpenedAtMs).UTC()
			item.OpenedAt = &t
		}
		out = append(out, item)
	}
	return out
}

func marshalRaw(row map[string]any) datatypes.JSON {
	if len(row) == 0 {
		return nil
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
