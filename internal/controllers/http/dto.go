package http

import (
	"time"

	"orderflow/internal/domain"
)

type CreateOrderRequest struct {
	AccountID uint64             `json:"accountId" binding:"required"`
	TableID   uint64             `json:"tableId" binding:"required"`
	Note      string             `json:"note"`
	Items     []OrderLineRequest `json:"items" binding:"required"`
}

type OrderLineRequest struct {
	ProductID uint64 `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type StatusResponse struct {
	ID           uint64        `json:"id"`
	Status       domain.Status `json:"status"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	LastStatusAt time.Time     `json:"lastStatusAt"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
