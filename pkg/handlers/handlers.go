package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arnavshah/ionm-board/pkg/auth"
	"github.com/arnavshah/ionm-board/pkg/board"
	"github.com/arnavshah/ionm-board/pkg/store"
)

const claimsKey = "claims"

// Handler contains dependencies for the route handlers
type Handler struct {
	Store      store.Store
	Engine     *board.Engine
	Board      *board.Session
	Issuer     *auth.Issuer
	DefaultPin string
	Logger     *zap.Logger
}

// AuthMiddleware verifies the bearer token in the Authorization header
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := h.Issuer.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// QueryTokenMiddleware moves a token query parameter into the Authorization
// header. Browsers opening a WebSocket cannot set headers, so only the
// socket route uses it.
func QueryTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.Query("token"); token != "" && c.GetHeader("Authorization") == "" {
			c.Request.Header.Set("Authorization", "Bearer "+token)
		}
		c.Next()
	}
}

// AdminMiddleware restricts a route group to staff with the admin role
func (h *Handler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := currentClaims(c)
		if claims == nil || !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) *auth.Claims {
	raw, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := raw.(*auth.Claims)
	return claims
}

// Login handles PIN sign-in
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
		Pin  string `json:"pin" binding:"max=4"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := auth.Login(c.Request.Context(), h.Store, req.Name, req.Pin, h.DefaultPin)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPin) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid PIN"})
			return
		}
		h.Logger.Error("login failed", zap.String("name", req.Name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not sign in"})
		return
	}

	token, err := h.Issuer.CreateToken(rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer", "staff": rec})
}

// Health reports whether the shared board is in sync with the store
func (h *Handler) Health(c *gin.Context) {
	snap := h.Board.Snapshot()
	status := http.StatusOK
	if snap.Stale {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"stale": snap.Stale, "error": snap.Error, "version": snap.Version})
}

// writeError maps board and store errors to HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, board.ErrInvalidPayload),
		errors.Is(err, board.ErrInvalidSource),
		errors.Is(err, board.ErrUnknownSlot),
		errors.Is(err, store.ErrUnknownField):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, board.ErrResetNotConfirmed):
		status = http.StatusPreconditionRequired
	case errors.Is(err, board.ErrWriteFailed):
		status = http.StatusBadGateway
	case errors.Is(err, board.ErrStoreUnavailable),
		errors.Is(err, board.ErrSessionClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
