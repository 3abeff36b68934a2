package version

import (
	"context"
	"net/http"
	"strconv"

	"living-science-documents/internal/domain"
	"living-science-documents/internal/errors"
	"living-science-documents/internal/middleware"
	"living-science-documents/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts reads on public and mutations on protected.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/versions/:id", h.Show)

	protected.PATCH("/versions/:id", h.Edit)
	protected.POST("/versions/:id/submit", h.action(h.service.SubmitForReview))
	protected.POST("/versions/:id/start-review", h.action(h.service.StartReview))
	protected.POST("/versions/:id/complete-review", h.CompleteReview)
	protected.POST("/versions/:id/publish", h.action(h.service.Publish))
	protected.POST("/versions/:id/withdraw", h.action(h.service.Withdraw))
	protected.POST("/versions/:id/close-discussion", h.action(h.service.CloseDiscussion))
	protected.POST("/versions/:id/sync-identifier", h.action(h.service.SyncIdentifier))
	protected.POST("/publications/:id/versions", h.CreateInitial)
}

func versionID(c *gin.Context) (uint64, bool) {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		c.Error(errors.NotFound("Version not found", nil))
	}
	return id, ok
}

func (h *Handler) Show(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}

	v, err := h.service.Get(c.Request.Context(), middleware.CurrentPrincipal(c), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, NewVersionResponse(v))
}

func (h *Handler) Edit(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}

	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	result, err := h.service.ProposeEdit(c.Request.Context(), middleware.CurrentPrincipal(c), id, req)
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
		c.Header("Location", "/versions/"+strconv.FormatUint(result.Version.ID, 10))
	}
	c.JSON(status, gin.H{"created": result.Created, "version": NewVersionResponse(result.Version)})
}

func (h *Handler) CompleteReview(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	v, err := h.service.CompleteReview(c.Request.Context(), middleware.CurrentPrincipal(c), id, req.Decision)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, NewVersionResponse(v))
}

func (h *Handler) CreateInitial(c *gin.Context) {
	pubID, ok := utils.ParseID(c, "id")
	if !ok {
		c.Error(errors.NotFound("Publication not found", nil))
		return
	}

	var req InitialVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	v, err := h.service.CreateInitialVersion(c.Request.Context(), middleware.CurrentPrincipal(c), pubID, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, NewVersionResponse(v))
}

type actionFunc func(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)

// action adapts a bodiless lifecycle action to a handler.
func (h *Handler) action(fn actionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := versionID(c)
		if !ok {
			return
		}

		v, err := fn(c.Request.Context(), middleware.CurrentPrincipal(c), id)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, NewVersionResponse(v))
	}
}
