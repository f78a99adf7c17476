package api

import (
	"github.com/gin-gonic/gin"
	"github.com/safar/order-engine/internal/auth"
	"github.com/safar/order-engine/internal/service"
	"github.com/safar/order-engine/internal/store"
	"github.com/shopspring/decimal"
)

type productRequest struct {
	Name  string           `json:"name" binding:"required"`
	Price *decimal.Decimal `json:"price" binding:"required"`
	Stock *int             `json:"stock" binding:"required"`
}

func (r productRequest) input() service.ProductInput {
	return service.ProductInput{Name: r.Name, Price: *r.Price, Stock: *r.Stock}
}

func (h *handler) listProducts(c *gin.Context) {
	filter, err := priceFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if filter.InStock, err = boolQuery(c, "in_stock"); err != nil {
		h.respondError(c, err)
		return
	}
	filter.Search = c.Query("search")

	h.writeProducts(c, filter)
}

func (h *handler) searchProducts(c *gin.Context) {
	skip, limit, err := pageParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.writeProducts(c, store.ProductFilter{Search: c.Param("term"), Skip: skip, Limit: limit})
}

func (h *handler) filterProductsByPrice(c *gin.Context) {
	filter, err := priceFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.writeProducts(c, filter)
}

// filterProductsByStock defaults to in-stock products.
func (h *handler) filterProductsByStock(c *gin.Context) {
	skip, limit, err := pageParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	inStock, err := boolQuery(c, "in_stock")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if inStock == nil {
		yes := true
		inStock = &yes
	}

	h.writeProducts(c, store.ProductFilter{InStock: inStock, Skip: skip, Limit: limit})
}

func priceFilter(c *gin.Context) (store.ProductFilter, error) {
	skip, limit, err := pageParams(c)
	if err != nil {
		return store.ProductFilter{}, err
	}
	filter := store.ProductFilter{Skip: skip, Limit: limit}

	if filter.MinPrice, err = decimalQuery(c, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = decimalQuery(c, "max_price"); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *handler) writeProducts(c *gin.Context, filter store.ProductFilter) {
	if !h.authorize(c, auth.ResourceProduct, auth.ActionList, 0) {
		return
	}

	products, err := h.svc.Catalog.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondWithMeta(c, products, gin.H{"skip": filter.Skip, "limit": filter.Limit, "count": len(products)})
}

func (h *handler) getProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceProduct, auth.ActionRead, 0) {
		return
	}

	product, err := h.svc.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, product)
}

func (h *handler) createProduct(c *gin.Context) {
	if !h.authorize(c, auth.ResourceProduct, auth.ActionCreate, 0) {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := h.svc.Catalog.Create(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondCreated(c, product)
}

func (h *handler) updateProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceProduct, auth.ActionUpdate, 0) {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := h.svc.Catalog.Update(c.Request.Context(), id, req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, product)
}

func (h *handler) deleteProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorize(c, auth.ResourceProduct, auth.ActionDelete, 0) {
		return
	}

	if err := h.svc.Catalog.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	respondMessage(c, "product deleted")
}
