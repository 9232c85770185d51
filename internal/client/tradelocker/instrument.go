package tradelocker

import (
	"net/url"
	"strings"
)

// InstrumentDetailPaths lists the known spellings of the instrument-details
// endpoint across TradeLocker deployments, most common first.
func InstrumentDetailPaths(instrumentID string) []string {
	id := url.PathEscape(instrumentID)
	return []string{
		"/trade/instruments/" + id,
		"/trade/instrumentDetails/" + id,
		"/trade/instrument-details/" + id,
		"/trade/instruments/details/" + id,
		"/trade/symbol_info?tradableInstrumentId=" + id,
		"/trade/symbolInfo?tradableInstrumentId=" + id,
	}
}

// AccountInstrumentsPath is the per-account instrument catalog, used as a
// fallback when no detail endpoint resolves.
func AccountInstrumentsPath(accountID string) string {
	return "/trade/accounts/" + url.PathEscape(accountID) + "/instruments"
}

// ExtractInstrumentSymbol pulls a display symbol out of an instrument-details
// payload, trying the field spellings seen in the wild.
func ExtractInstrumentSymbol(payload any) string {
	root, ok := UnwrapD(payload).(map[string]any)
	if !ok {
		return ""
	}
	if s := FirstString(root, "symbol", "name", "shortName", "ticker", "instrumentName", "instrument"); s != "" {
		return s
	}
	if ti, ok := root["tradableInstrument"].(map[string]any); ok {
		return FirstString(ti, "symbol", "name")
	}
	return ""
}

// FindInstrumentInList scans an account instrument catalog for instrumentID,
// matching ids as strings or numbers. It returns the matched row or nil.
func FindInstrumentInList(payload any, instrumentID string) map[string]any {
	root := UnwrapD(payload)
	var rows []any
	switch v := root.(type) {
	case []any:
		rows = v
	case map[string]any:
		if inner, ok := v["instruments"].([]any); ok {
			rows = inner
		} else if inner, ok := v["data"].([]any); ok {
			rows = inner
		}
	}
	target := strings.TrimSpace(instrumentID)
	if target == "" || len(rows) == 0 {
		return nil
	}
	targetNum, targetIsNum := NumberLike(target)
	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"instrumentId", "id", "_id", "tradableInstrumentId"} {
			v, ok := row[key]
			if !ok || v == nil {
				continue
			}
			if FirstString(row, key) == target {
				return row
			}
			if targetIsNum {
				if n, ok := NumberLike(v); ok && n == targetNum {
					return row
				}
			}
		}
	}
	return nil
}
