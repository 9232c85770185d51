package tradelocker

import "net/url"

// Candidate path lists for each trade resource, most specific first. Probing
// stops at the first 2xx, skips past 404s, and aborts on any other failure.

func ConfigPaths() []string {
	return []string{"/trade/config", "/config"}
}

func OrderPaths(accountID string) []string {
	id := url.PathEscape(accountID)
	return []string{
		"/trade/accounts/" + id + "/orders",
		"/trade/orders?accountId=" + url.QueryEscape(accountID),
		"/trade/orders",
	}
}

// ExecutionPaths covers both spellings of the fills feed; some deployments
// only expose filledOrders.
func ExecutionPaths(accountID string) []string {
	id := url.PathEscape(accountID)
	q := url.QueryEscape(accountID)
	return []string{
		"/trade/accounts/" + id + "/filledOrders",
		"/trade/filledOrders?accountId=" + q,
		"/trade/filledOrders",
		"/trade/accounts/" + id + "/executions",
		"/trade/executions?accountId=" + q,
		"/trade/executions",
	}
}

func OrderHistoryPaths(accountID string) []string {
	id := url.PathEscape(accountID)
	return []string{
		"/trade/accounts/" + id + "/ordersHistory",
		"/trade/ordersHistory?accountId=" + url.QueryEscape(accountID),
		"/trade/ordersHistory",
	}
}

func PositionPaths(accountID string) []string {
	id := url.PathEscape(accountID)
	return []string{
		"/trade/accounts/" + id + "/positions",
		"/trade/positions?accountId=" + url.QueryEscape(accountID),
		"/trade/positions",
	}
}

// ClosedTradePaths targets the closed-trade history report, the preferred
// source for realized P&L events.
func ClosedTradePaths(accountID string) []string {
	id := url.PathEscape(accountID)
	q := url.QueryEscape(accountID)
	return []string{
		"/trade/accounts/" + id + "/closedTrades",
		"/trade/closedTrades?accountId=" + q,
		"/trade/accounts/" + id + "/tradesHistory",
		"/trade/tradesHistory?accountId=" + q,
	}
}

func AccountStatePaths(accountID string) []string {
	id := url.PathEscape(accountID)
	return []string{
		"/trade/accounts/" + id + "/state",
		"/trade/state?accountId=" + url.QueryEscape(accountID),
		"/trade/state",
	}
}
