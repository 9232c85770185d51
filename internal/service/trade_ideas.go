package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"traderlaunchpad/internal/models"
	"traderlaunchpad/internal/repository"
)

// instrumentEpisodeKeyPrefix marks synthetic groups built by the flat-to-flat
// fallback, keeping them distinguishable from broker positionId groups.
const instrumentEpisodeKeyPrefix = "inst:"

// TradeIdeaService rebuilds trade-idea groups from the full execution set
// each time, never incrementally, so rounding drift cannot compound.
type TradeIdeaService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// RebuildForPosition recomputes the group for one broker-assigned positionId.
// isOpen tells whether the position was present in the latest open-positions
// snapshot. Returns nil when the position has no stored executions.
func (s *TradeIdeaService) RebuildForPosition(ctx context.Context, connectionID uint64, positionID string, isOpen bool) (*models.TradeIdeaGroup, error) {
	positionID = strings.TrimSpace(positionID)
	if s == nil || s.Repo == nil || positionID == "" {
		return nil, nil
	}
	execs, err := s.Repo.ListExecutionsByPositionIDs(ctx, connectionID, []string{positionID})
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, nil
	}
	events, err := s.Repo.ListRealizationEventsByPositionIDs(ctx, connectionID, []string{positionID})
	if err != nil {
		return nil, err
	}
	realized := decimal.Zero
	for _, e := range events {
		realized = realized.Add(e.Profit)
	}
	groups := []models.TradeIdeaGroup{buildGroup(connectionID, positionID, execs, realized, isOpen)}
	if err := s.Repo.UpsertTradeIdeaGroups(ctx, groups); err != nil {
		return nil, err
	}
	return &groups[0], nil
}

// RebuildForInstrument handles executions the broker reported without a
// positionId: consecutive flat-to-flat episodes on the instrument become
// synthetic groups, and each closed episode yields one realization event
// computed from its cashflow. Stale episode groups left over from earlier
// passes are deleted.
func (s *TradeIdeaService) RebuildForInstrument(ctx context.Context, connectionID uint64, instrumentID string) ([]models.TradeIdeaGroup, []models.TradeRealizationEvent, error) {
	instrumentID = strings.TrimSpace(instrumentID)
	if s == nil || s.Repo == nil || instrumentID == "" {
		return nil, nil, nil
	}
	all, err := s.Repo.ListExecutionsByInstrument(ctx, connectionID, instrumentID)
	if err != nil {
		return nil, nil, err
	}
	orphans := make([]models.TradeExecution, 0, len(all))
	for _, e := range all {
		if strings.TrimSpace(e.PositionID) == "" {
			orphans = append(orphans, e)
		}
	}
	if len(orphans) == 0 {
		return nil, nil, nil
	}
	groups, events := buildEpisodes(connectionID, instrumentID, orphans)
	if err := s.Repo.UpsertTradeIdeaGroups(ctx, groups); err != nil {
		return nil, nil, err
	}
	keep := make([]string, 0, len(groups))
	for _, g := range groups {
		keep = append(keep, g.PositionKey)
	}
	if _, err := s.Repo.DeleteInstrumentEpisodesNotIn(ctx, connectionID, instrumentID, keep); err != nil {
		return nil, nil, err
	}
	if len(events) > 0 {
		if _, _, err := s.Repo.UpsertRealizationEvents(ctx, events); err != nil {
			return nil, nil, err
		}
	}
	return groups, events, nil
}

// buildGroup folds an execution list (ordered by executedAt) into one group.
// Net quantity is signed buy-positive; average entry price is weighted over
// the entry-side legs only.
func buildGroup(connectionID uint64, positionKey string, execs []models.TradeExecution, realized decimal.Decimal, isOpen bool) models.TradeIdeaGroup {
	first := execs[0]
	last := execs[len(execs)-1]

	direction := "long"
	entrySide := "buy"
	if first.Side == "sell" {
		direction = "short"
		entrySide = "sell"
	}

	netQty := decimal.Zero
	fees := decimal.Zero
	entryQty := decimal.Zero
	entryNotional := decimal.Zero
	for _, e := range execs {
		if e.Side == "sell" {
			netQty = netQty.Sub(e.Qty)
		} else {
			netQty = netQty.Add(e.Qty)
		}
		fees = fees.Add(e.Fee)
		if e.Side == entrySide {
			entryQty = entryQty.Add(e.Qty)
			entryNotional = entryNotional.Add(e.Qty.Mul(e.Price))
		}
	}
	avgEntry := decimal.Zero
	if entryQty.IsPositive() {
		avgEntry = entryNotional.Div(entryQty)
	}

	status := "closed"
	if isOpen {
		status = "open"
	}
	openedAt := first.ExecutedAt
	lastAt := last.ExecutedAt
	group := models.TradeIdeaGroup{
		ConnectionID:    connectionID,
		PositionKey:     positionKey,
		InstrumentID:    first.InstrumentID,
		Symbol:          firstNonEmptySymbol(execs),
		Direction:       direction,
		Status:          status,
		NetQty:          netQty,
		AvgEntryPrice:   avgEntry,
		RealizedPnL:     realized,
		Fees:            fees,
		ExecutionCount:  len(execs),
		OpenedAt:        &openedAt,
		LastExecutionAt: &lastAt,
	}
	if status == "closed" {
		group.ClosedAt = &lastAt
	}
	return group
}

// buildEpisodes splits orphan executions into flat-to-flat episodes. An
// episode opens when running quantity leaves zero and closes when it returns;
// realized P&L for a closed episode is sell proceeds minus buy cost minus
// fees, which holds for shorts as well.
func buildEpisodes(connectionID uint64, instrumentID string, execs []models.TradeExecution) ([]models.TradeIdeaGroup, []models.TradeRealizationEvent) {
	var groups []models.TradeIdeaGroup
	var events []models.TradeRealizationEvent

	var episode []models.TradeExecution
	running := decimal.Zero
	cashIn := decimal.Zero
	cashOut := decimal.Zero

	flush := func(closed bool) {
		if len(episode) == 0 {
			return
		}
		key := instrumentEpisodeKeyPrefix + instrumentID + ":start:" + episode[0].ExternalID
		realized := decimal.Zero
		if closed {
			fees := decimal.Zero
			for _, e := range episode {
				fees = fees.Add(e.Fee)
			}
			realized = cashIn.Sub(cashOut).Sub(fees)
		}
		group := buildGroup(connectionID, key, episode, realized, !closed)
		group.Status = "open"
		if closed {
			group.Status = "closed"
			last := episode[len(episode)-1]
			closedAt := last.ExecutedAt
			group.ClosedAt = &closedAt
			events = append(events, models.TradeRealizationEvent{
				ConnectionID: connectionID,
				ExternalID:   key + ":close:" + last.ExternalID,
				PositionID:   key,
				OrderID:      last.OrderID,
				InstrumentID: instrumentID,
				Symbol:       group.Symbol,
				Side:         last.Side,
				QtyClosed:    last.Qty,
				ClosePrice:   last.Price,
				OpenPrice:    group.AvgEntryPrice,
				Profit:       realized,
				OpenedAt:     group.OpenedAt,
				ClosedAt:     closedAt,
			})
		}
		groups = append(groups, group)
		episode = nil
		cashIn = decimal.Zero
		cashOut = decimal.Zero
	}

	for _, e := range execs {
		episode = append(episode, e)
		if e.Side == "sell" {
			running = running.Sub(e.Qty)
			cashIn = cashIn.Add(e.Qty.Mul(e.Price))
		} else {
			running = running.Add(e.Qty)
			cashOut = cashOut.Add(e.Qty.Mul(e.Price))
		}
		if running.IsZero() {
			flush(true)
		}
	}
	flush(false)

	return groups, events
}

func firstNonEmptySymbol(execs []models.TradeExecution) string {
	for _, e := range execs {
		if strings.TrimSpace(e.Symbol) != "" {
			return e.Symbol
		}
	}
	return ""
}
