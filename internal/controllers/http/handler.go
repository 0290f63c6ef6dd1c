package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"orderflow/internal/domain"
	"orderflow/internal/services"
)

// Handler is the thin HTTP surface over the order lifecycle core. The
// acting role and account arrive in headers stamped by the session layer,
// which is out of scope here.
type Handler struct {
	service     *services.OrderService
	broadcaster *services.Broadcaster
	log         zerolog.Logger
}

func NewHandler(s *services.OrderService, b *services.Broadcaster, log zerolog.Logger) *Handler {
	return &Handler{service: s, broadcaster: b, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.PATCH("/orders/:id/status", h.UpdateStatus)
	r.DELETE("/orders/:id", h.CancelOrder)

	accounts := r.Group("/accounts/:accountId")
	accounts.GET("/orders", h.ListOrders)
	accounts.GET("/orders/stream", h.StreamOrders)

	r.POST("/admin/accounts/:accountId/daily-sequence/reset", h.ResetDailySequence)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}
	lines := make([]services.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, services.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	order, err := h.service.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		AccountID: req.AccountID,
		TableID:   req.TableID,
		Note:      req.Note,
		Lines:     lines,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.service.GetOrder(c.Request.Context(), actingAccount(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}
	order, err := h.service.UpdateStatus(c.Request.Context(), actingAccount(c), id, actingRole(c), domain.Status(req.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		ID:           order.ID,
		Status:       order.Status,
		UpdatedAt:    order.UpdatedAt,
		LastStatusAt: order.LastStatusAt,
	})
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.service.Cancel(c.Request.Context(), actingAccount(c), id, actingRole(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		ID:           order.ID,
		Status:       order.Status,
		UpdatedAt:    order.UpdatedAt,
		LastStatusAt: order.LastStatusAt,
	})
}

func (h *Handler) ListOrders(c *gin.Context) {
	accountID, ok := pathID(c, "accountId")
	if !ok {
		return
	}
	orders, err := h.service.ListOrders(c.Request.Context(), accountID, domain.Status(c.Query("status")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) ResetDailySequence(c *gin.Context) {
	if actingRole(c) != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Code: "FORBIDDEN", Message: "admin only"})
		return
	}
	accountID, ok := pathID(c, "accountId")
	if !ok {
		return
	}
	if err := h.service.ResetDailySequence(c.Request.Context(), accountID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var coded *domain.Error
	if errors.As(err, &coded) {
		c.JSON(coded.HTTPStatus, ErrorResponse{Code: coded.Code, Message: coded.Message})
		return
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "internal server error"})
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "VALIDATION_ERROR", Message: "invalid " + name})
		return 0, false
	}
	return id, true
}

func actingRole(c *gin.Context) domain.Role {
	switch r := domain.Role(c.GetHeader("X-Role")); r {
	case domain.RoleAdmin, domain.RoleKitchen, domain.RoleWaiter:
		return r
	}
	return domain.RoleClient
}

func actingAccount(c *gin.Context) uint64 {
	id, _ := strconv.ParseUint(c.GetHeader("X-Account-ID"), 10, 64)
	return id
}
