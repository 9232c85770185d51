package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"traderlaunchpad/internal/client/tradelocker"
	"traderlaunchpad/internal/repository"
	"traderlaunchpad/internal/secrets"
)

// Token storage modes. In raw mode tokens persist as-is; in enc mode they are
// wrapped in the enc_v1 envelope. Mode is inferred from how the connection's
// tokens were stored unless the caller overrides it.
const (
	TokenStorageRaw = "raw"
	TokenStorageEnc = "enc"
)

// tokenSession holds the live token pair for one sync run and performs the
// single-retry refresh dance: any 401/403 triggers at most one rotation per
// call site before the original failure stands.
type tokenSession struct {
	client       *tradelocker.Client
	repo         repository.Repository
	logger       *zap.Logger
	connectionID uint64
	secretsKey   string
	storageMode  string

	accessToken  string
	refreshToken string
	accNum       string
}

func newTokenSession(client *tradelocker.Client, repo repository.Repository, logger *zap.Logger, connectionID uint64, secretsKey, storageMode, accessToken, refreshToken string) *tokenSession {
	if storageMode != TokenStorageEnc {
		storageMode = TokenStorageRaw
	}
	return &tokenSession{
		client:       client,
		repo:         repo,
		logger:       logger,
		connectionID: connectionID,
		secretsKey:   secretsKey,
		storageMode:  storageMode,
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

func (s *tokenSession) setAccNum(accNum string) {
	s.accNum = accNum
}

// Get fetches path with the current credentials, rotating tokens once on
// 401/403. reason tags the call site in refresh logs.
func (s *tokenSession) Get(ctx context.Context, path, reason string) ([]byte, error) {
	body, err := s.client.Get(ctx, path, tradelocker.Auth{AccessToken: s.accessToken, AccNum: s.accNum})
	if err == nil {
		return body, nil
	}
	if status := tradelocker.StatusOf(err); status != 401 && status != 403 {
		return nil, err
	}
	if !s.rotate(ctx, reason) {
		return nil, err
	}
	return s.client.Get(ctx, path, tradelocker.Auth{AccessToken: s.accessToken, AccNum: s.accNum})
}

// allAccounts applies the same single-retry policy to the accounts listing,
// which authenticates with the bearer token alone.
func (s *tokenSession) allAccounts(ctx context.Context) ([]map[string]any, error) {
	accounts, err := s.client.AllAccounts(ctx, s.accessToken)
	if err == nil {
		return accounts, nil
	}
	if status := tradelocker.StatusOf(err); status != 401 && status != 403 {
		return nil, err
	}
	if !s.rotate(ctx, "all_accounts_auth") {
		return nil, err
	}
	return s.client.AllAccounts(ctx, s.accessToken)
}

// rotate refreshes the token pair and persists it. A failed refresh marks the
// connection errored and reports false; the caller's original auth failure
// then stands.
func (s *tokenSession) rotate(ctx context.Context, reason string) bool {
	pair, err := s.client.RefreshTokens(ctx, s.refreshToken)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("token refresh failed",
				zap.String("reason", reason),
				zap.Uint64("connection_id", s.connectionID),
				zap.Int("status", tradelocker.StatusOf(err)),
			)
		}
		status := "error"
		msg := "token refresh failed: " + err.Error()
		_ = s.repo.UpdateConnectionSyncState(ctx, s.connectionID, repository.UpdateSyncStateParams{
			Status:    &status,
			LastError: &msg,
		})
		return false
	}
	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	if err := s.persistTokens(ctx, pair.ExpireAt); err != nil && s.logger != nil {
		s.logger.Warn("persisting rotated tokens failed", zap.Error(err), zap.Uint64("connection_id", s.connectionID))
	}
	if s.logger != nil {
		s.logger.Info("tokens rotated", zap.String("reason", reason), zap.Uint64("connection_id", s.connectionID))
	}
	return true
}

func (s *tokenSession) persistTokens(ctx context.Context, accessExpiresAt *time.Time) error {
	access, refresh := s.accessToken, s.refreshToken
	if s.storageMode == TokenStorageEnc {
		var err error
		if access, err = secrets.Encrypt(access, s.secretsKey); err != nil {
			return err
		}
		if refresh, err = secrets.Encrypt(refresh, s.secretsKey); err != nil {
			return err
		}
	}
	var jwtHost *string
	if h := tradelocker.HostFromAccessToken(s.accessToken); h != "" {
		jwtHost = &h
	}
	return s.repo.UpdateConnectionTokens(ctx, s.connectionID, access, refresh, accessExpiresAt, nil, jwtHost)
}
