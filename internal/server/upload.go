package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const uploadRejected = "Choose a file before sending (Max 5Mb)."

// multipartOverhead is headroom for form boundaries and headers on top of the
// file size limit.
const multipartOverhead = 64 << 10

// UploadResponse is returned for a stored file. Clients pass both names back
// in a send-file-message event.
type UploadResponse struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
}

// UploadHandler stores the multipart "file" field under the configured
// upload directory with a random name. Missing or oversized files are
// rejected with 400.
func UploadHandler(c *gin.Context) {
	cfg := currentConfig()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxUploadSize+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		log.Debug().Err(err).Str("addr", c.ClientIP()).Msg("upload without a usable file")
		c.String(http.StatusBadRequest, uploadRejected)
		return
	}
	if file.Size <= 0 || file.Size > cfg.MaxUploadSize {
		log.Info().Int64("size", file.Size).Str("addr", c.ClientIP()).Msg("upload rejected by size")
		c.String(http.StatusBadRequest, uploadRejected)
		return
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", cfg.UploadDir).Msg("failed to create upload directory")
		c.String(http.StatusInternalServerError, "ERROR!")
		return
	}

	stored := uuid.NewString()
	if err := c.SaveUploadedFile(file, filepath.Join(cfg.UploadDir, stored)); err != nil {
		log.Error().Err(err).Str("file", stored).Msg("failed to store upload")
		c.String(http.StatusInternalServerError, "ERROR!")
		return
	}

	log.Info().Str("file", stored).Int64("size", file.Size).Msg("upload stored")
	c.JSON(http.StatusOK, UploadResponse{
		Filename:     stored,
		OriginalName: filepath.Base(file.Filename),
	})
}
