package ingestion

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inbox/internal/logger"
	pkgerrors "inbox/pkg/errors"
)

type Handler struct {
	pipeline        *Pipeline
	signatureHeader string
	logger          logger.Logger
}

func NewHandler(pipeline *Pipeline, signatureHeader string, log logger.Logger) *Handler {
	return &Handler{
		pipeline:        pipeline,
		signatureHeader: signatureHeader,
		logger:          log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine, extra ...gin.HandlerFunc) {
	handlers := append([]gin.HandlerFunc{}, extra...)
	handlers = append(handlers, h.Ingest)
	router.POST("/webhook", handlers...)
}

// Ingest handles POST /webhook. The body is read raw so the signature is
// computed over the exact bytes received.
func (h *Handler) Ingest(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		h.handleError(c, pkgerrors.ErrValidation.
			WithDetail("field", "body").
			WithDetail("reason", "failed to read request body").
			WithCause(err))
		return
	}

	claimedSig := c.GetHeader(h.signatureHeader)

	if _, err := h.pipeline.Process(c.Request.Context(), rawBody, claimedSig); err != nil {
		h.handleError(c, err)
		return
	}

	// Created and duplicate both succeed; only the recorded result differs.
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	if pkgerrors.IsServiceUnavailable(err) {
		h.logger.ErrorwCtx(c.Request.Context(), "Webhook request failed", "error", err)
	}

	status := pkgerrors.ToHTTPStatus(err)
	response := pkgerrors.ToErrorResponse(err)

	c.JSON(status, response)
}
