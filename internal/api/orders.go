package api

import (
	"github.com/gin-gonic/gin"
	"github.com/safar/order-engine/internal/auth"
	"github.com/safar/order-engine/internal/models"
)

type lineRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

type createOrderRequest struct {
	UserID int64         `json:"user_id" binding:"required,gt=0"`
	Items  []lineRequest `json:"items" binding:"required,min=1,dive"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

func (h *handler) listOrders(c *gin.Context) {
	if !h.authorize(c, auth.ResourceOrder, auth.ActionList, 0) {
		return
	}

	skip, limit, err := pageParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	orders, err := h.svc.Orders.ListAll(c.Request.Context(), skip, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondWithMeta(c, orders, gin.H{"skip": skip, "limit": limit, "count": len(orders)})
}

// myOrders pages through the caller's orders, newest first, by cursor.
func (h *handler) myOrders(c *gin.Context) {
	id := identityFrom(c)
	if !h.authorize(c, auth.ResourceOrder, auth.ActionRead, id.UserID) {
		return
	}

	_, limit, err := pageParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	page, err := h.svc.Orders.ListMine(c.Request.Context(), id.UserID, c.Query("cursor"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondWithMeta(c, page.Items, gin.H{"next_cursor": page.NextCursor, "has_more": page.HasMore})
}

func (h *handler) userOrders(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceOrder, auth.ActionList, userID) {
		return
	}

	skip, limit, err := pageParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	orders, err := h.svc.Orders.ListForUser(c.Request.Context(), userID, skip, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondWithMeta(c, orders, gin.H{"skip": skip, "limit": limit, "count": len(orders)})
}

func (h *handler) getOrder(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !identityFrom(c).Authenticated() {
		h.respondError(c, errInvalidCredentials)
		return
	}

	order, err := h.svc.Orders.Get(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceOrder, auth.ActionRead, order.UserID) {
		return
	}

	respondOK(c, order)
}

func (h *handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceOrder, auth.ActionCreate, req.UserID) {
		return
	}

	lines := make([]models.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, models.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.svc.Orders.Create(c.Request.Context(), req.UserID, lines)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondCreated(c, order)
}

func (h *handler) updateOrderStatus(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceOrder, auth.ActionUpdate, 0) {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), orderID, status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, order)
}

func (h *handler) deleteOrder(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceOrder, auth.ActionDelete, 0) {
		return
	}

	if err := h.svc.Orders.Delete(c.Request.Context(), orderID); err != nil {
		h.respondError(c, err)
		return
	}

	respondMessage(c, "order deleted and stock restored")
}
