package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"traderlaunchpad/internal/client/tradelocker"
	"traderlaunchpad/internal/models"
)

// realizationFromRows converts broker closed-trade report rows into
// realization events. Brokers do not ship a stable identifier for these rows,
// so the dedup key is composed from positionId, orderId, the close time
// rounded to seconds and the profit rounded to cents.
func realizationFromRows(connectionID uint64, rows []map[string]any, now time.Time) []models.TradeRealizationEvent {
	events := make([]models.TradeRealizationEvent, 0, len(rows))
	for _, row := range rows {
		positionID := tradelocker.FirstString(row, "positionId", "posId", "position_id", "id", "_id")
		profit, hasProfit := firstRowNumber(row, "profit", "pnl", "realizedPnl", "netPnl", "netProfit")
		if positionID == "" && !hasProfit {
			continue
		}
		orderID := tradelocker.FirstString(row, "orderId", "order_id", "closingOrderId")
		closedAt := tradelocker.TimeLikeMs(firstRowValue(row, "closedAt", "closeTime", "closeDate", "time", "timestamp", "closedDate"), now)
		qty, _ := firstRowNumber(row, "qtyClosed", "qty", "amount", "quantity", "lots")
		openPrice, _ := firstRowNumber(row, "openPrice", "entryPrice", "avgOpenPrice")
		closePrice, _ := firstRowNumber(row, "closePrice", "exitPrice", "price", "avgClosePrice")
		commission, _ := firstRowNumber(row, "commission", "fee", "fees")
		swap, _ := firstRowNumber(row, "swap", "swaps", "rollover")

		ev := models.TradeRealizationEvent{
			ConnectionID: connectionID,
			PositionID:   positionID,
			OrderID:      orderID,
			InstrumentID: tradelocker.FirstString(row, "instrumentId", "instrument_id", "tradableInstrumentId", "instrument"),
			Symbol:       tradelocker.FirstString(row, "symbol", "instrumentName", "name"),
			Side:         tradelocker.NormalizeSide(firstRowValue(row, "side", "direction")),
			QtyClosed:    decimal.NewFromFloat(qty),
			OpenPrice:    decimal.NewFromFloat(openPrice),
			ClosePrice:   decimal.NewFromFloat(closePrice),
			Profit:       decimal.NewFromFloat(profit),
			Commission:   decimal.NewFromFloat(commission),
			Swap:         decimal.NewFromFloat(swap),
			ClosedAt:     time.UnixMilli(closedAt).UTC(),
		}
		if v := firstRowValue(row, "openedAt", "openTime", "openDate", "createdDate"); v != nil {
			t := time.UnixMilli(tradelocker.TimeLikeMs(v, now)).UTC()
			ev.OpenedAt = &t
		}
		ev.ExternalID = realizationKey(positionID, orderID, ev.ClosedAt, profit)
		events = append(events, ev)
	}
	return events
}

// realizationFromHistory is the fallback when no closed-trade report is
// available: order-history rows that carry a realized P&L figure are treated
// as close events.
func realizationFromHistory(connectionID uint64, rows []map[string]any, now time.Time) []models.TradeRealizationEvent {
	withPnL := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if _, ok := firstRowNumber(row, "profit", "pnl", "realizedPnl", "netPnl", "netProfit"); ok {
			withPnL = append(withPnL, row)
		}
	}
	return realizationFromRows(connectionID, withPnL, now)
}

// realizationKey builds the composite dedup identifier. Close time rounds to
// whole seconds and profit to cents so repeated report pulls that jitter in
// millisecond precision still collapse to one event.
func realizationKey(positionID, orderID string, closedAt time.Time, profit float64) string {
	if strings.TrimSpace(positionID) == "" {
		positionID = "-"
	}
	if strings.TrimSpace(orderID) == "" {
		orderID = "-"
	}
	return fmt.Sprintf("%s:%s:%d:%s", positionID, orderID, closedAt.Unix(),
		decimal.NewFromFloat(profit).Round(2).String())
}

// linkEventsToGroups fills TradeIdeaGroupID on events whose positionId matches
// a rebuilt group key.
func linkEventsToGroups(events []models.TradeRealizationEvent, groups map[string]uint64) {
	for i := range events {
		if id, ok := groups[events[i].PositionID]; ok && id != 0 {
			gid := id
			events[i].TradeIdeaGroupID = &gid
		}
	}
}

func firstRowValue(row map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstRowNumber(row map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			if n, ok := tradelocker.NumberLike(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}
