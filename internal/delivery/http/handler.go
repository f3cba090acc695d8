package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cartmatch/backend/internal/domain"
)

// Matcher is the engine surface the HTTP layer depends on.
type Matcher interface {
	MatchList(ctx context.Context, freeText string) (*domain.MatchResult, error)
	MatchItems(ctx context.Context, items []domain.ShoppingItem) (*domain.MatchResult, error)
	MatchItem(ctx context.Context, item domain.ShoppingItem) (*domain.Match, *domain.NotFoundItem)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matcher Matcher
}

// NewHandler creates a new HTTP handler
func NewHandler(matcher Matcher) *Handler {
	return &Handler{matcher: matcher}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cartmatch-backend",
		"version": "1.0.0",
	})
}

// matchListRequest accepts either free text or pre-parsed items.
type matchListRequest struct {
	Text  string                `json:"text"`
	Items []domain.ShoppingItem `json:"items"`
}

// MatchList matches a whole shopping list. Partial results are success:
// items that could not be matched land in the notFound list, never in a
// 5xx response.
func (h *Handler) MatchList(c *gin.Context) {
	var req matchListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var result *domain.MatchResult
	var err error
	if len(req.Items) > 0 {
		result, err = h.matcher.MatchItems(c.Request.Context(), req.Items)
	} else {
		result, err = h.matcher.MatchList(c.Request.Context(), req.Text)
	}

	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "list text or items required"})
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "request cancelled"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// MatchItem matches a single pre-parsed item, mainly for inspection and
// debugging of the tiered search.
func (h *Handler) MatchItem(c *gin.Context) {
	var item domain.ShoppingItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if item.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item name required"})
		return
	}

	match, notFound := h.matcher.MatchItem(c.Request.Context(), item)
	if match != nil {
		c.JSON(http.StatusOK, gin.H{"match": match})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notFound": notFound})
}
