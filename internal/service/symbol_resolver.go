package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"traderlaunchpad/internal/client/tradelocker"
)

// symbolResolver backfills symbols for rows that only carry an instrument id.
// The cache is scoped to one sync run and passed explicitly, so concurrent
// runs never share lookups. Failures leave the symbol unset; a miss is cached
// too so one bad instrument costs a single round trip per run.
type symbolResolver struct {
	session   *tokenSession
	accountID string
	logger    *zap.Logger
	cache     map[string]string
}

func newSymbolResolver(session *tokenSession, accountID string, logger *zap.Logger) *symbolResolver {
	return &symbolResolver{
		session:   session,
		accountID: accountID,
		logger:    logger,
		cache:     map[string]string{},
	}
}

func (r *symbolResolver) Resolve(ctx context.Context, instrumentID string) string {
	instrumentID = strings.TrimSpace(instrumentID)
	if instrumentID == "" {
		return ""
	}
	if cached, ok := r.cache[instrumentID]; ok {
		return cached
	}
	symbol := r.lookup(ctx, instrumentID)
	r.cache[instrumentID] = symbol
	return symbol
}

func (r *symbolResolver) lookup(ctx context.Context, instrumentID string) string {
	body, _, err := probeFirst(ctx, r.session, "instrument_details", tradelocker.InstrumentDetailPaths(instrumentID), r.logger)
	if err == nil && body != nil {
		if symbol := tradelocker.ExtractInstrumentSymbol(tradelocker.DecodePayload(body)); symbol != "" {
			return symbol
		}
	}
	// Fall back to the account's instrument catalog.
	listBody, err := r.session.Get(ctx, tradelocker.AccountInstrumentsPath(r.accountID), "instruments_list")
	if err != nil {
		return ""
	}
	row := tradelocker.FindInstrumentInList(tradelocker.DecodePayload(listBody), instrumentID)
	if row == nil {
		return ""
	}
	return tradelocker.FirstString(row, "symbol", "name")
}
