package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"videohub/api/internal/apperr"
	"videohub/api/internal/media/sniffer"
	"videohub/api/internal/middleware"
	"videohub/api/internal/service"
)

// multipartOverhead is headroom for boundaries and part headers on top of the file limit.
const multipartOverhead = 1 << 20

const uploadField = "file"

type videoResponse struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	Checksum     string    `json:"checksum"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UploadVideo streams the "file" part straight into storage without buffering the body.
func (h HandlerSet) UploadVideo(c *gin.Context) {
	limit := h.videos.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	reader, err := c.Request.MultipartReader()
	if err != nil {
		middleware.AbortWithError(c, apperr.ValidationError("Expected a multipart/form-data body"))
		return
	}

	part, err := nextFilePart(reader)
	if err != nil {
		middleware.AbortWithError(c, uploadError(err, limit))
		return
	}
	defer part.Close()

	upload, err := h.videos.Upload(c.Request.Context(), service.UploadInput{
		File:         part,
		Filename:     part.FileName(),
		DeclaredType: sniffer.MimeTypeFromHTTP(http.Header(part.Header)),
	})
	if err != nil {
		middleware.AbortWithError(c, uploadError(err, limit))
		return
	}

	c.JSON(http.StatusCreated, videoResponse{
		ID:           upload.ID,
		Filename:     upload.Filename,
		OriginalName: upload.OriginalName,
		MimeType:     upload.MimeType,
		SizeBytes:    upload.SizeBytes,
		Checksum:     upload.Checksum,
		CreatedAt:    upload.CreatedAt,
	})
}

// nextFilePart skips ordinary form fields until the upload part.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apperr.ValidationError("Validation failed", apperr.FieldError{Field: uploadField, Message: "A file is required"})
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func uploadError(err error, limit int64) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return apperr.PayloadTooLarge(fmt.Sprintf("File exceeds the %d MiB limit", limit>>20))
	case apperr.As(err) != nil:
		return err
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, multipart.ErrMessageTooLarge):
		return apperr.ValidationError("Malformed multipart body")
	default:
		return err
	}
}
