package api

import (
	"github.com/gin-gonic/gin"
	"github.com/safar/order-engine/internal/auth"
)

type cartItemRequest struct {
	UserID    int64 `json:"user_id" binding:"required,gt=0"`
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

func (h *handler) getCart(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceCart, auth.ActionRead, userID) {
		return
	}

	items, err := h.svc.Carts.List(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, items)
}

func (h *handler) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceCart, auth.ActionCreate, req.UserID) {
		return
	}

	item, err := h.svc.Carts.Add(c.Request.Context(), req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, item)
}

func (h *handler) removeCartItem(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	productID, err := pathID(c, "product_id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceCart, auth.ActionDelete, userID) {
		return
	}

	if err := h.svc.Carts.Remove(c.Request.Context(), userID, productID); err != nil {
		h.respondError(c, err)
		return
	}

	respondMessage(c, "item removed from cart")
}

func (h *handler) checkout(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceCart, auth.ActionCheckout, userID) {
		return
	}

	order, err := h.svc.Carts.Checkout(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondCreated(c, order)
}
