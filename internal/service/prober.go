package service

import (
	"context"

	"go.uber.org/zap"

	"traderlaunchpad/internal/client/tradelocker"
)

type resourceGetter interface {
	Get(ctx context.Context, path, reason string) ([]byte, error)
}

type probeAttempt struct {
	Path   string `json:"path"`
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
}

// probeFirst walks candidate paths in order: first 2xx wins, 404 moves on to
// the next candidate, any other failure surfaces immediately. All candidates
// 404ing means the deployment lacks the resource; that is reported as an
// empty body with no error.
func probeFirst(ctx context.Context, g resourceGetter, reason string, paths []string, logger *zap.Logger) ([]byte, []probeAttempt, error) {
	attempts := make([]probeAttempt, 0, len(paths))
	for _, path := range paths {
		body, err := g.Get(ctx, path, reason)
		if err == nil {
			attempts = append(attempts, probeAttempt{Path: path, Status: 200, OK: true})
			return body, attempts, nil
		}
		status := tradelocker.StatusOf(err)
		attempts = append(attempts, probeAttempt{Path: path, Status: status})
		if status == 404 {
			continue
		}
		if logger != nil {
			logger.Warn("resource fetch failed",
				zap.String("resource", reason),
				zap.String("path", path),
				zap.Int("status", status),
			)
		}
		return nil, attempts, err
	}
	if logger != nil {
		logger.Debug("resource absent on all candidate paths", zap.String("resource", reason))
	}
	return nil, attempts, nil
}
