package tradelocker

import (
	"reflect"
	"testing"
)

func TestExtractColumns(t *testing.T) {
	config := map[string]any{
		"s": "ok",
		"d": map[string]any{
			"filledOrdersConfig": map[string]any{
				"columns": []any{
					map[string]any{"id": "id"},
					map[string]any{"id": "time"},
					map[string]any{"id": "side"},
				},
			},
			"positions": map[string]any{
				"columns": []any{
					map[string]any{"id": "positionId"},
				},
			},
		},
	}

	cases := []struct {
		panel string
		want  []string
	}{
		{"filledOrders", []string{"id", "time", "side"}},
		{"positions", []string{"positionId"}},
		{"orders", nil},
	}
	for _, c := range cases {
		got := ExtractColumns(config, c.panel)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("ExtractColumns(%q) = %v, want %v", c.panel, got, c.want)
		}
	}
}

func TestExtractColumnsSkipsEmptyIDs(t *testing.T) {
	config := map[string]any{
		"ordersConfig": map[string]any{
			"columns": []any{
				map[string]any{"id": ""},
				map[string]any{"id": "qty"},
				map[string]any{"name": "no-id"},
			},
		},
	}
	got := ExtractColumns(config, "orders")
	if !reflect.DeepEqual(got, []string{"qty"}) {
		t.Fatalf("got %v", got)
	}
}

func TestTableRowsToObjects(t *testing.T) {
	rows := []any{
		[]any{"o1", "buy", "1.5"},
		[]any{"o2", "sell"},
		map[string]any{"id": "o3", "side": "buy"},
		"not-a-row",
	}
	got := TableRowsToObjects(rows, []string{"id", "side", "qty"})
	if len(got) != 3 {
		t.Fatalf("expected 3 objects, got %d", len(got))
	}
	if got[0]["id"] != "o1" || got[0]["side"] != "buy" || got[0]["qty"] != "1.5" {
		t.Fatalf("row 0 mismatch: %v", got[0])
	}
	if _, ok := got[1]["qty"]; ok {
		t.Fatalf("short row must leave missing columns unset: %v", got[1])
	}
	if got[2]["id"] != "o3" {
		t.Fatalf("object row must pass through: %v", got[2])
	}
}

func TestExtractRows(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		keys    []string
		want    int
	}{
		{"bare array", []any{1, 2}, []string{"orders"}, 2},
		{"d wrapped", map[string]any{"d": map[string]any{"orders": []any{1}}}, []string{"orders"}, 1},
		{"second key", map[string]any{"fills": []any{1, 2, 3}}, []string{"executions", "fills"}, 3},
		{"missing", map[string]any{"x": 1}, []string{"orders"}, 0},
		{"nil", nil, []string{"orders"}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ExtractRows(c.payload, c.keys...)
			if len(got) != c.want {
				t.Fatalf("got %d rows, want %d", len(got), c.want)
			}
		})
	}
}

func TestAccountDetailsToObject(t *testing.T) {
	payload := map[string]any{
		"d": map[string]any{
			"accountDetailsData": []any{"10250.55", "10300", "USD"},
		},
	}
	got := AccountDetailsToObject(payload, []string{"balance", "equity", "currency"})
	if got["balance"] != 10250.55 {
		t.Fatalf("balance not coerced: %v", got["balance"])
	}
	if got["currency"] != "USD" {
		t.Fatalf("non-numeric value must pass through: %v", got["currency"])
	}
	if AccountDetailsToObject(payload, nil) != nil {
		t.Fatalf("no columns must yield nil")
	}
}
