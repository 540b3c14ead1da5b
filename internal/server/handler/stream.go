package handler

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zzkydev/Convertify-PDF/internal/server/service"
)

// streamAttachment writes res as a download and returns once the whole
// body has been copied.
func streamAttachment(c *gin.Context, res service.Result) error {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	c.Header("Content-Type", res.MediaType)
	c.Header("Content-Length", strconv.FormatInt(res.Size, 10))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	_, err := io.Copy(c.Writer, res.Body)
	return err
}
