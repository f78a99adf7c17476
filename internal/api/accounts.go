package api

import (
	"github.com/gin-gonic/gin"
	"github.com/safar/order-engine/internal/auth"
	"github.com/safar/order-engine/internal/service"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (r registerRequest) input() service.RegisterInput {
	return service.RegisterInput{Username: r.Username, Email: r.Email, Password: r.Password}
}

type registerAdminRequest struct {
	registerRequest
	SecretKey string `json:"secret_key" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.svc.Accounts.Register(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondCreated(c, user)
}

func (h *handler) registerAdmin(c *gin.Context) {
	var req registerAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.svc.Accounts.RegisterAdmin(c.Request.Context(), req.input(), req.SecretKey)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondCreated(c, user)
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	token, _, err := h.svc.Accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokenTTL.Seconds()),
	})
}

func (h *handler) adminDashboard(c *gin.Context) {
	respondOK(c, gin.H{"message": "Welcome to admin dashboard", "user": identityFrom(c).Username})
}

// adminReports summarizes orders per status.
func (h *handler) adminReports(c *gin.Context) {
	summary, err := h.svc.Orders.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, gin.H{"orders_by_status": summary})
}

func (h *handler) profile(c *gin.Context) {
	if !h.authorize(c, auth.ResourceProfile, auth.ActionRead, 0) {
		return
	}

	id := identityFrom(c)
	respondOK(c, gin.H{"user_id": id.UserID, "user": id.Username, "role": id.Role})
}
