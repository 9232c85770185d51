package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"traderlaunchpad/internal/models"
	"traderlaunchpad/internal/repository"
	"traderlaunchpad/internal/service"
)

// TradeHandler exposes the reconciled trading data per connection.
type TradeHandler struct {
	Repo       repository.Repository
	Svc        *service.BrokerSyncService
	SecretsKey string
}

func (h *TradeHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/connections/:org/:user")
	group.GET("/trade-ideas", h.listTradeIdeas)
	group.GET("/executions", h.listExecutions)
	group.GET("/realizations", h.listRealizations)
	group.GET("/account-state", h.accountState)
	group.GET("/instruments/:id", h.instrumentDetails)
}

func (h *TradeHandler) connection(c *gin.Context) *models.BrokerConnection {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return nil
	}
	conn, err := h.Repo.GetConnection(c.Request.Context(), c.Param("org"), c.Param("user"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return nil
	}
	if conn == nil {
		Error(c, http.StatusNotFound, "connection not found", nil)
		return nil
	}
	return conn
}

func (h *TradeHandler) listTradeIdeas(c *gin.Context) {
	conn := h.connection(c)
	if conn == nil {
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListTradeIdeaGroups(c.Request.Context(), repository.ListTradeIdeasParams{
		ConnectionID: conn.ID,
		Status:       strQueryPtr(c, "status"),
		InstrumentID: strQueryPtr(c, "instrumentId"),
		Limit:        limit,
		Offset:       offset,
		OrderBy:      "last_execution_at",
		Asc:          boolPtr(false),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, listMeta(limit, offset, len(items)))
}

func (h *TradeHandler) listExecutions(c *gin.Context) {
	conn := h.connection(c)
	if conn == nil {
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListExecutions(c.Request.Context(), repository.ListExecutionsParams{
		ConnectionID: conn.ID,
		PositionID:   strQueryPtr(c, "positionId"),
		InstrumentID: strQueryPtr(c, "instrumentId"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, listMeta(limit, offset, len(items)))
}

func (h *TradeHandler) listRealizations(c *gin.Context) {
	conn := h.connection(c)
	if conn == nil {
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListRealizationsParams{
		ConnectionID: conn.ID,
		PositionID:   strQueryPtr(c, "positionId"),
		Limit:        limit,
		Offset:       offset,
	}
	if raw := c.Query("since"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			u := ts.UTC()
			params.Since = &u
		}
	}
	items, err := h.Repo.ListRealizationEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, listMeta(limit, offset, len(items)))
}

func (h *TradeHandler) accountState(c *gin.Context) {
	conn := h.connection(c)
	if conn == nil {
		return
	}
	state, err := h.Repo.GetAccountState(c.Request.Context(), conn.ID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if state == nil {
		Error(c, http.StatusNotFound, "no account state captured yet", nil)
		return
	}
	Ok(c, state, nil)
}

func (h *TradeHandler) instrumentDetails(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "sync service unavailable", nil)
		return
	}
	details, err := h.Svc.InstrumentDetails(c.Request.Context(), service.SyncOptions{
		OrganizationID: c.Param("org"),
		UserID:         c.Param("user"),
		SecretsKey:     h.SecretsKey,
	}, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConnectionNotFound):
			Error(c, http.StatusNotFound, "connection not found", nil)
		case errors.Is(err, service.ErrInstrumentNotFound):
			Error(c, http.StatusNotFound, "instrument not found", nil)
		default:
			Error(c, http.StatusBadGateway, err.Error(), nil)
		}
		return
	}
	Ok(c, details, nil)
}
