package tradelocker

import (
	"testing"
	"time"
)

func TestNormalizeSide(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"buy", "buy"},
		{"B", "buy"},
		{"SELL", "sell"},
		{"s", "sell"},
		{"long", ""},
		{nil, ""},
		{1, ""},
	}
	for _, c := range cases {
		if got := NormalizeSide(c.in); got != c.want {
			t.Fatalf("NormalizeSide(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTimeLikeMs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   any
		want int64
	}{
		{"epoch ms number", float64(1756000000000), 1756000000000},
		{"epoch seconds rescaled", float64(1756000000), 1756000000000},
		{"numeric string", "1756000000000", 1756000000000},
		{"epoch seconds string", "1756000000", 1756000000000},
		{"rfc3339", "2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()},
		{"garbage", "soon", now.UnixMilli()},
		{"empty", "", now.UnixMilli()},
		{"nil", nil, now.UnixMilli()},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := TimeLikeMs(c.in, now); got != c.want {
				t.Fatalf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestTimeLikeMsOrZero(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int64
	}{
		{"epoch seconds rescaled", float64(1767225600), 1767225600000},
		{"epoch ms kept", float64(1767225600000), 1767225600000},
		{"rfc3339", "2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()},
		{"garbage is zero", "soon", 0},
		{"nil is zero", nil, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := TimeLikeMsOrZero(c.in); got != c.want {
				t.Fatalf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestFirstStringCoercesNumericIDs(t *testing.T) {
	row := map[string]any{"tradableInstrumentId": float64(4421)}
	if got := FirstString(row, "instrumentId", "tradableInstrumentId"); got != "4421" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeExecutions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []map[string]any{
		{
			"executionId":  "e1",
			"orderId":      float64(901),
			"positionId":   "p1",
			"side":         "B",
			"qty":          "0.5",
			"price":        "1.2345",
			"fees":         float64(0.07),
			"time":         float64(1756000000000),
			"symbol":       "EURUSD",
			"instrumentId": "278",
		},
		{"id": "e2", "side": "sell", "qty": float64(2)},
		{"side": "buy"}, // no id, skipped
	}
	got := NormalizeExecutions(rows, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(got))
	}
	first := got[0]
	if first.ExternalExecutionID != "e1" || first.ExternalOrderID != "901" {
		t.Fatalf("ids mismatch: %+v", first)
	}
	if first.Side != "buy" || first.Qty != 0.5 || first.Price != 1.2345 {
		t.Fatalf("values mismatch: %+v", first)
	}
	if first.ExecutedAtMs != 1756000000000 {
		t.Fatalf("executedAt mismatch: %d", first.ExecutedAtMs)
	}
	if got[1].ExecutedAtMs != now.UnixMilli() {
		t.Fatalf("missing time must fall back to now")
	}
}

func TestNormalizeOrders(t *testing.T) {
	rows := []map[string]any{
		{
			"orderId":              "o1",
			"side":                 "sell",
			"status":               "filled",
			"qty":                  "3",
			"price":                "1.1",
			"tradableInstrumentId": float64(99),
			"createdAt":            float64(1700000000000),
		},
		{"orderId": "o2", "createdAt": float64(1767225600)},
		{"orderId": "o3", "createdDate": "2026-03-01T10:00:00Z"},
		{"orderId": "o4"},
		{"noid": true},
	}
	got := NormalizeOrders(rows)
	if len(got) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(got))
	}
	o := got[0]
	if o.ExternalOrderID != "o1" || o.Side != "sell" || o.Status != "filled" {
		t.Fatalf("order mismatch: %+v", o)
	}
	if o.InstrumentID != "99" || o.Qty != 3 || o.CreatedAtMs != 1700000000000 {
		t.Fatalf("order fields mismatch: %+v", o)
	}
	if got[1].CreatedAtMs != 1767225600000 {
		t.Fatalf("epoch-seconds createdAt not rescaled: %d", got[1].CreatedAtMs)
	}
	if want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli(); got[2].CreatedAtMs != want {
		t.Fatalf("iso createdDate: %d want %d", got[2].CreatedAtMs, want)
	}
	if got[3].CreatedAtMs != 0 {
		t.Fatalf("missing createdAt must stay zero, got %d", got[3].CreatedAtMs)
	}
}

func TestNormalizePositions(t *testing.T) {
	rows := []map[string]any{
		{"positionId": "p1", "side": "buy", "qty": "1.5", "avgPrice": "1.08", "openedAt": float64(1700000000001)},
		{"positionId": "p2", "openDate": float64(1767225600)},
	}
	got := NormalizePositions(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(got))
	}
	p := got[0]
	if p.ExternalPositionID != "p1" || p.Qty != 1.5 || p.AvgPrice != 1.08 || p.OpenedAtMs != 1700000000001 {
		t.Fatalf("position mismatch: %+v", p)
	}
	if got[1].OpenedAtMs != 1767225600000 {
		t.Fatalf("epoch-seconds openDate not rescaled: %d", got[1].OpenedAtMs)
	}
}
