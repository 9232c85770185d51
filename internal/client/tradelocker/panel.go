package tradelocker

import (
	"encoding/json"
	"strings"
)

// TradeLocker wraps most trade responses as {s:"ok", d:{...}} and renders
// panel data as positional string[][] rows described by column ids in
// /trade/config. The helpers here unwrap the envelope and zip rows back into
// keyed objects.

// UnwrapD returns payload.d when present, else the payload itself.
func UnwrapD(payload any) any {
	if m, ok := payload.(map[string]any); ok {
		if d, ok := m["d"].(map[string]any); ok {
			return d
		}
	}
	return payload
}

// DecodePayload parses a raw body into a generic JSON value. A nil or
// non-JSON body decodes to nil; callers treat that as an empty payload.
func DecodePayload(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil
	}
	return out
}

// ExtractRows pulls the row array out of a payload: a bare array, or the
// first of keys found under the (possibly d-wrapped) root.
func ExtractRows(payload any, keys ...string) []any {
	if payload == nil {
		return nil
	}
	if rows, ok := payload.([]any); ok {
		return rows
	}
	root, ok := UnwrapD(payload).(map[string]any)
	if !ok {
		return nil
	}
	for _, k := range keys {
		if rows, ok := root[k].([]any); ok {
			return rows
		}
	}
	return nil
}

// ExtractColumns reads the column ids for a panel from the config payload.
// Panels appear as `{panelId}Config`, the panel id itself, or its lowercase
// form; each carries columns[].id.
func ExtractColumns(config any, panelID string) []string {
	root, ok := UnwrapD(config).(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range []string{panelID + "Config", panelID, strings.ToLower(panelID)} {
		panel, ok := root[key].(map[string]any)
		if !ok {
			continue
		}
		cols, ok := panel["columns"].([]any)
		if !ok {
			continue
		}
		ids := make([]string, 0, len(cols))
		for _, c := range cols {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if id, ok := cm["id"].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// TableRowsToObjects zips positional rows into keyed maps. Rows that already
// are objects pass through untouched; extra cells beyond the column list are
// dropped, missing cells leave the key unset.
func TableRowsToObjects(rows []any, columns []string) []map[string]any {
	if len(rows) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		if obj, ok := r.(map[string]any); ok {
			out = append(out, obj)
			continue
		}
		cells, ok := r.([]any)
		if !ok {
			continue
		}
		obj := make(map[string]any, len(columns))
		for i := 0; i < len(columns) && i < len(cells); i++ {
			if columns[i] == "" {
				continue
			}
			obj[columns[i]] = cells[i]
		}
		out = append(out, obj)
	}
	return out
}

// AccountDetailsToObject zips the flat accountDetailsData array from the
// account state payload against the accountDetails panel columns.
func AccountDetailsToObject(statePayload any, columns []string) map[string]any {
	if statePayload == nil || len(columns) == 0 {
		return nil
	}
	root, ok := UnwrapD(statePayload).(map[string]any)
	if !ok {
		return nil
	}
	values, ok := root["accountDetailsData"].([]any)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(columns))
	for i := 0; i < len(columns) && i < len(values); i++ {
		if columns[i] == "" {
			continue
		}
		if n, ok := NumberLike(values[i]); ok {
			out[columns[i]] = n
			continue
		}
		out[columns[i]] = values[i]
	}
	return out
}
