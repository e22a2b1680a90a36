package messages

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"inbox/internal/logger"
	pkgerrors "inbox/pkg/errors"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/messages", h.ListMessages)
	router.GET("/stats", h.GetStats)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := pkgerrors.ToHTTPStatus(err)
	response := pkgerrors.ToErrorResponse(err)

	c.JSON(status, response)
}

type listResponse struct {
	Data   []Message `json:"data"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

func (h *Handler) ListMessages(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, listResponse{
		Data:   items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func parseListFilter(c *gin.Context) (ListFilter, error) {
	filter := ListFilter{
		From:      c.Query("from"),
		TextQuery: c.Query("q"),
		Limit:     DefaultLimit,
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, pkgerrors.ErrValidation.
				WithDetail("field", "limit").
				WithDetail("reason", "limit must be an integer")
		}
		filter.Limit = limit
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, pkgerrors.ErrValidation.
				WithDetail("field", "offset").
				WithDetail("reason", "offset must be an integer")
		}
		filter.Offset = offset
	}

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, pkgerrors.ErrValidation.
				WithDetail("field", "since").
				WithDetail("reason", "since must be an RFC 3339 timestamp")
		}
		filter.Since = since
	}

	return filter, nil
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
