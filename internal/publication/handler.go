package publication

import (
	"net/http"
	"strconv"

	"living-science-documents/internal/errors"
	"living-science-documents/internal/middleware"
	"living-science-documents/internal/utils"
	"living-science-documents/internal/version"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/publications/:id", h.Show)
	public.GET("/publications/:id/versions", h.ListVersions)
	public.GET("/publications/:id/latest-version", h.Latest)
	public.GET("/publications/:id/current-version", h.Current)

	protected.POST("/publications", h.Create)
}

func publicationID(c *gin.Context) (uint64, bool) {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		c.Error(errors.NotFound("Publication not found", nil))
	}
	return id, ok
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	pub, err := h.service.CreatePublication(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Location", "/publications/"+strconv.FormatUint(pub.ID, 10))
	c.JSON(http.StatusCreated, NewPublicationResponse(pub))
}

func (h *Handler) Show(c *gin.Context) {
	id, ok := publicationID(c)
	if !ok {
		return
	}

	pub, err := h.service.GetPublication(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, NewPublicationResponse(pub))
}

func (h *Handler) ListVersions(c *gin.Context) {
	id, ok := publicationID(c)
	if !ok {
		return
	}

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListVersions(c.Request.Context(), middleware.CurrentPrincipal(c), id, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Latest(c *gin.Context) {
	id, ok := publicationID(c)
	if !ok {
		return
	}

	v, err := h.service.LatestVersion(c.Request.Context(), middleware.CurrentPrincipal(c), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, version.NewVersionResponse(v))
}

func (h *Handler) Current(c *gin.Context) {
	id, ok := publicationID(c)
	if !ok {
		return
	}

	v, err := h.service.CurrentPublicVersion(c.Request.Context(), middleware.CurrentPrincipal(c), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, version.NewVersionResponse(v))
}
