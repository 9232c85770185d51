package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"traderlaunchpad/internal/models"
	"traderlaunchpad/internal/repository"
	"traderlaunchpad/internal/secrets"
)

// ConnectionHandler manages broker connections. Token material never leaves
// this layer: responses carry a redacted view and stored tokens are encrypted
// with SecretsKey when one is configured.
type ConnectionHandler struct {
	Repo       repository.Repository
	SecretsKey string
}

func (h *ConnectionHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/connections")
	group.POST("", h.upsert)
	group.GET("/:org/:user", h.get)
	group.DELETE("/:org/:user", h.disconnect)
}

type upsertConnectionRequest struct {
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	Environment    string `json:"environment"`
	Server         string `json:"server"`
	Email          string `json:"email"`
	AccountID      string `json:"accountId"`
	AccNum         string `json:"accNum"`
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
}

// connectionView is the redacted API shape; token fields stay server-side.
type connectionView struct {
	ID                   uint64     `json:"id"`
	OrganizationID       string     `json:"organizationId"`
	UserID               string     `json:"userId"`
	Provider             string     `json:"provider"`
	Environment          string     `json:"environment"`
	Server               string     `json:"server,omitempty"`
	Email                string     `json:"email,omitempty"`
	AccountID            string     `json:"accountId,omitempty"`
	AccNum               string     `json:"accNum,omitempty"`
	Status               string     `json:"status"`
	LastError            *string    `json:"lastError,omitempty"`
	LastSyncAt           *time.Time `json:"lastSyncAt,omitempty"`
	LastBrokerActivityAt *time.Time `json:"lastBrokerActivityAt,omitempty"`
	HasOpenTrade         bool       `json:"hasOpenTrade"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func toConnectionView(c *models.BrokerConnection) connectionView {
	return connectionView{
		ID:                   c.ID,
		OrganizationID:       c.OrganizationID,
		UserID:               c.UserID,
		Provider:             c.Provider,
		Environment:          c.Environment,
		Server:               c.Server,
		Email:                c.Email,
		AccountID:            c.AccountID,
		AccNum:               c.AccNum,
		Status:               c.Status,
		LastError:            c.LastError,
		LastSyncAt:           c.LastSyncAt,
		LastBrokerActivityAt: c.LastBrokerActivityAt,
		HasOpenTrade:         c.HasOpenTrade,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func (h *ConnectionHandler) upsert(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req upsertConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.OrganizationID = strings.TrimSpace(req.OrganizationID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.OrganizationID == "" || req.UserID == "" {
		Error(c, http.StatusBadRequest, "organizationId and userId required", nil)
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" || strings.TrimSpace(req.RefreshToken) == "" {
		Error(c, http.StatusBadRequest, "accessToken and refreshToken required", nil)
		return
	}

	conn, err := h.Repo.GetConnection(c.Request.Context(), req.OrganizationID, req.UserID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if conn == nil {
		conn = &models.BrokerConnection{
			OrganizationID: req.OrganizationID,
			UserID:         req.UserID,
			Provider:       "tradelocker",
		}
	}
	env := strings.ToLower(strings.TrimSpace(req.Environment))
	if env != "live" {
		env = "demo"
	}
	conn.Environment = env
	conn.Server = strings.TrimSpace(req.Server)
	conn.Email = strings.TrimSpace(req.Email)
	if id := strings.TrimSpace(req.AccountID); id != "" {
		conn.AccountID = id
	}
	if num := strings.TrimSpace(req.AccNum); num != "" {
		conn.AccNum = num
	}

	access, refresh := req.AccessToken, req.RefreshToken
	if h.SecretsKey != "" {
		if access, err = secrets.Encrypt(access, h.SecretsKey); err != nil {
			Error(c, http.StatusInternalServerError, "token encryption failed", nil)
			return
		}
		if refresh, err = secrets.Encrypt(refresh, h.SecretsKey); err != nil {
			Error(c, http.StatusInternalServerError, "token encryption failed", nil)
			return
		}
	}
	conn.AccessTokenEnc = access
	conn.RefreshTokenEnc = refresh
	conn.Status = "connected"
	conn.LastError = nil

	if err := h.Repo.UpsertConnection(c.Request.Context(), conn); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, toConnectionView(conn), nil)
}

func (h *ConnectionHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	conn, err := h.Repo.GetConnection(c.Request.Context(), c.Param("org"), c.Param("user"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if conn == nil {
		Error(c, http.StatusNotFound, "connection not found", nil)
		return
	}
	var meta map[string]any
	if state, _ := h.Repo.GetSyncState(c.Request.Context(), conn.ID); state != nil {
		meta = map[string]any{
			"lastAttemptAt": state.LastAttemptAt,
			"lastSuccessAt": state.LastSuccessAt,
		}
		if state.LastError != nil {
			meta["lastSyncError"] = *state.LastError
		}
	}
	Ok(c, toConnectionView(conn), meta)
}

func (h *ConnectionHandler) disconnect(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	conn, err := h.Repo.GetConnection(c.Request.Context(), c.Param("org"), c.Param("user"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if conn == nil {
		Error(c, http.StatusNotFound, "connection not found", nil)
		return
	}
	status := "disconnected"
	if err := h.Repo.UpdateConnectionSyncState(c.Request.Context(), conn.ID, repository.UpdateSyncStateParams{Status: &status}); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{"id": conn.ID, "status": status}, nil)
}
