package tradelocker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Normalized rows keep broker values in loose float64/epoch-ms form; the
// service layer converts to decimals and timestamps when persisting.

type NormalizedOrder struct {
	ExternalOrderID string
	Symbol          string
	InstrumentID    string
	Side            string
	Status          string
	OrderType       string
	PositionID      string
	Qty             float64
	FilledQty       float64
	Price           float64
	AvgPrice        float64
	CreatedAtMs     int64
	Raw             map[string]any
}

type NormalizedExecution struct {
	ExternalExecutionID string
	ExternalOrderID     string
	PositionID          string
	Symbol              string
	InstrumentID        string
	Side                string
	Qty                 float64
	Price               float64
	Fees                float64
	ExecutedAtMs        int64
	Raw                 map[string]any
}

type NormalizedPosition struct {
	ExternalPositionID string
	Symbol             string
	InstrumentID       string
	Side               string
	Qty                float64
	AvgPrice           float64
	UnrealizedPL       float64
	OpenedAtMs         int64
	Raw                map[string]any
}

// NormalizeSide maps buy/b to "buy" and sell/s to "sell"; anything else is "".
func NormalizeSide(raw any) string {
	s, _ := raw.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b":
		return "buy"
	case "sell", "s":
		return "sell"
	}
	return ""
}

// NumberLike coerces numbers and numeric strings. Blank or non-numeric input
// reports ok=false instead of guessing.
func NumberLike(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// TimeLikeMs coerces epoch milliseconds, epoch seconds (detected by
// magnitude and rescaled), numeric strings, and RFC3339-ish strings.
// Unparseable input falls back to now so a bad broker clock field never
// drops the row.
func TimeLikeMs(v any, now time.Time) int64 {
	if ms, ok := timeMs(v); ok {
		return ms
	}
	return now.UnixMilli()
}

// TimeLikeMsOrZero parses like TimeLikeMs but reports absent or unparseable
// values as zero, for optional timestamps that persist as nil.
func TimeLikeMsOrZero(v any) int64 {
	ms, _ := timeMs(v)
	return ms
}

func timeMs(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return rescaleEpoch(int64(t)), true
		}
	case int64:
		if t > 0 {
			return rescaleEpoch(t), true
		}
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			break
		}
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil && n > 0 {
			return rescaleEpoch(int64(n)), true
		}
		if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
			return parsed.UnixMilli(), true
		}
	}
	return 0, false
}

// Values below ~2001-09 in ms are assumed to be epoch seconds.
func rescaleEpoch(n int64) int64 {
	if n > 0 && n < 1_000_000_000_000 {
		return n * 1000
	}
	return n
}

func firstValue(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// FirstString stringifies the first present key, so numeric ids survive.
func FirstString(m map[string]any, keys ...string) string {
	v, ok := firstValue(m, keys...)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// FirstNumber returns the first coercible numeric value among keys.
func FirstNumber(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if n, ok := NumberLike(v); ok {
				return n
			}
		}
	}
	return 0
}

// NormalizeOrders flattens an orders (or ordersHistory) payload. Rows without
// any id are skipped.
func NormalizeOrders(rows []map[string]any) []NormalizedOrder {
	out := make([]NormalizedOrder, 0, len(rows))
	for _, row := range rows {
		id := FirstString(row, "orderId", "id", "_id", "externalOrderId")
		if id == "" {
			continue
		}
		out = append(out, NormalizedOrder{
			ExternalOrderID: id,
			Symbol:          FirstString(row, "symbol"),
			InstrumentID:    FirstString(row, "instrumentId", "instrument_id", "tradableInstrumentId"),
			Side:            NormalizeSide(valueOr(row, "side", "direction")),
			Status:          FirstString(row, "status", "state"),
			OrderType:       FirstString(row, "type", "orderType"),
			PositionID:      FirstString(row, "positionId", "posId"),
			Qty:             FirstNumber(row, "qty", "quantity", "amount"),
			FilledQty:       FirstNumber(row, "filledQty", "filledAmount", "filled"),
			Price:           FirstNumber(row, "price", "limitPrice"),
			AvgPrice:        FirstNumber(row, "avgPrice", "averagePrice"),
			CreatedAtMs:     TimeLikeMsOrZero(valueOr(row, "createdAt", "openTime", "createdDate", "placedAt")),
			Raw:             row,
		})
	}
	return out
}

// NormalizeExecutions flattens an executions/filledOrders payload. ExecutedAt
// always resolves (falling back to now) so ordering and dedup keys hold.
func NormalizeExecutions(rows []map[string]any, now time.Time) []NormalizedExecution {
	out := make([]NormalizedExecution, 0, len(rows))
	for _, row := range rows {
		id := FirstString(row, "executionId", "fillId", "id", "_id")
		if id == "" {
			continue
		}
		executedAtRaw, _ := firstValue(row, "executedAt", "time", "timestamp", "createdAt", "createdDate")
		out = append(out, NormalizedExecution{
			ExternalExecutionID: id,
			ExternalOrderID:     FirstString(row, "orderId", "externalOrderId"),
			PositionID:          FirstString(row, "positionId", "posId"),
			Symbol:              FirstString(row, "symbol"),
			InstrumentID:        FirstString(row, "instrumentId", "instrument_id", "tradableInstrumentId"),
			Side:                NormalizeSide(valueOr(row, "side", "direction")),
			Qty:                 FirstNumber(row, "qty", "quantity", "amount"),
			Price:               FirstNumber(row, "price", "fillPrice"),
			Fees:                FirstNumber(row, "fees", "fee", "commission"),
			ExecutedAtMs:        TimeLikeMs(executedAtRaw, now),
			Raw:                 row,
		})
	}
	return out
}

// NormalizePositions flattens a positions payload.
func NormalizePositions(rows []map[string]any) []NormalizedPosition {
	out := make([]NormalizedPosition, 0, len(rows))
	for _, row := range rows {
		id := FirstString(row, "positionId", "posId", "id", "_id")
		if id == "" {
			continue
		}
		out = append(out, NormalizedPosition{
			ExternalPositionID: id,
			Symbol:             FirstString(row, "symbol"),
			InstrumentID:       FirstString(row, "instrumentId", "instrument_id", "tradableInstrumentId"),
			Side:               NormalizeSide(valueOr(row, "side", "direction")),
			Qty:                FirstNumber(row, "qty", "quantity", "amount"),
			AvgPrice:           FirstNumber(row, "avgPrice", "averagePrice", "price", "openPrice"),
			UnrealizedPL:       FirstNumber(row, "unrealizedPl", "unrealizedPnl", "uPnL"),
			OpenedAtMs:         TimeLikeMsOrZero(valueOr(row, "openedAt", "openDate", "createdAt")),
			Raw:                row,
		})
	}
	return out
}

func valueOr(m map[string]any, keys ...string) any {
	v, _ := firstValue(m, keys...)
	return v
}
