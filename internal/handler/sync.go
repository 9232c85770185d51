package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"traderlaunchpad/internal/service"
)

// SyncHandler triggers an on-demand broker pull for one connection.
type SyncHandler struct {
	Svc        *service.BrokerSyncService
	SecretsKey string
}

func (h *SyncHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/sync", h.sync)
}

type syncRequest struct {
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	ConnectionID   uint64 `json:"connectionId"`
	Limit          int    `json:"limit"`
	TokenStorage   string `json:"tokenStorage"`
}

func (h *SyncHandler) sync(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "sync service unavailable", nil)
		return
	}
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.OrganizationID = strings.TrimSpace(req.OrganizationID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.ConnectionID == 0 && (req.OrganizationID == "" || req.UserID == "") {
		Error(c, http.StatusBadRequest, "connectionId or organizationId+userId required", nil)
		return
	}

	result, err := h.Svc.Sync(c.Request.Context(), service.SyncOptions{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		ConnectionID:   req.ConnectionID,
		Limit:          req.Limit,
		SecretsKey:     h.SecretsKey,
		TokenStorage:   req.TokenStorage,
	})
	if err != nil {
		if errors.Is(err, service.ErrConnectionNotFound) {
			Error(c, http.StatusNotFound, "connection not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}
