package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRealizationFromRows(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	rows := []map[string]any{
		{
			"positionId": "p1",
			"orderId":    "o9",
			"profit":     12.345,
			"qty":        1.5,
			"openPrice":  100.0,
			"closePrice": 108.0,
			"side":       "buy",
			"closedAt":   float64(1767225600123), // 2026-01-01T00:00:00.123Z
			"commission": 0.2,
		},
		{"note": "no id, no pnl"},
	}
	events := realizationFromRows(1, rows, now)
	if len(events) != 1 {
		t.Fatalf("events=%d want 1", len(events))
	}
	ev := events[0]
	if ev.PositionID != "p1" || ev.OrderID != "o9" {
		t.Fatalf("ids=%q/%q", ev.PositionID, ev.OrderID)
	}
	if ev.Side != "buy" {
		t.Fatalf("side=%q", ev.Side)
	}
	// Seconds-rounded close time and cents-rounded profit in the key.
	want := "p1:o9:1767225600:12.35"
	if ev.ExternalID != want {
		t.Fatalf("externalId=%q want %q", ev.ExternalID, want)
	}
	if ev.ClosedAt.Unix() != 1767225600 {
		t.Fatalf("closedAt=%v", ev.ClosedAt)
	}
}

func TestRealizationKeyCollapsesJitter(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := realizationKey("p1", "o1", base.Add(100*time.Millisecond), 1.2301)
	b := realizationKey("p1", "o1", base.Add(900*time.Millisecond), 1.2304)
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
}

func TestRealizationKeyPlaceholders(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := realizationKey("", "", base, 0)
	if got != "-:-:1767225600:0" {
		t.Fatalf("key=%q", got)
	}
}

func TestRealizationFromHistorySkipsRowsWithoutPnL(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	rows := []map[string]any{
		{"orderId": "o1", "status": "filled"},
		{"orderId": "o2", "positionId": "p7", "pnl": -3.0, "closedAt": "2026-02-01T00:00:00Z"},
	}
	events := realizationFromHistory(1, rows, now)
	if len(events) != 1 {
		t.Fatalf("events=%d want 1", len(events))
	}
	if events[0].PositionID != "p7" {
		t.Fatalf("positionId=%q", events[0].PositionID)
	}
	if !events[0].Profit.Equal(decimal.NewFromInt(-3)) {
		t.Fatalf("profit=%s", events[0].Profit)
	}
}
