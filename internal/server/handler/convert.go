package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
	"github.com/zzkydev/Convertify-PDF/internal/operation"
	"github.com/zzkydev/Convertify-PDF/internal/server/service"
)

// multipartMemory is how much of a form is kept in memory before parts
// spill to temporary files.
const multipartMemory = 32 << 20

// Dispatcher defines the behavior consumed by the handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, op operation.Descriptor, form *multipart.Form, emit service.Emitter) error
}

// ConvertHandler manages conversion HTTP interactions.
type ConvertHandler struct {
	dispatcher   Dispatcher
	maxBodyBytes int64
	logger       zerolog.Logger
}

// NewConvertHandler builds the handler. Request bodies above maxBodyBytes
// are rejected.
func NewConvertHandler(d Dispatcher, maxBodyBytes int64, logger zerolog.Logger) *ConvertHandler {
	return &ConvertHandler{dispatcher: d, maxBodyBytes: maxBodyBytes, logger: logger}
}

// Handle returns the Gin handler serving op.
func (h *ConvertHandler) Handle(op operation.Descriptor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > h.maxBodyBytes {
			h.fail(c, op, apperr.TooLarge(h.maxBodyBytes))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.fail(c, op, apperr.TooLarge(h.maxBodyBytes))
				return
			}
			h.fail(c, op, apperr.Validation("invalid multipart payload"))
			return
		}
		form := c.Request.MultipartForm
		defer form.RemoveAll()

		err := h.dispatcher.Dispatch(c.Request.Context(), op, form, func(res service.Result) error {
			return streamAttachment(c, res)
		})
		if err != nil {
			h.fail(c, op, err)
		}
	}
}

func (h *ConvertHandler) fail(c *gin.Context, op operation.Descriptor, err error) {
	status := apperr.HTTPStatus(err)

	event := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).
		Str("operation", string(op.Kind)).
		Int("status", status).
		Msg("conversion request failed")

	// Headers are gone once streaming started; the client sees a short body.
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": apperr.Detail(err),
	})
}
