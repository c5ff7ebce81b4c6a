package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"videohub/api/internal/apperr"
	"videohub/api/internal/config"
	"videohub/api/internal/ids"
	"videohub/api/internal/media/sniffer"
	"videohub/api/internal/storage"
)

const (
	UploadedStream    = "videos:uploaded"
	uploadedStreamCap = 10000
)

// MaxUploadBytes is the largest accepted video unless configured otherwise.
const MaxUploadBytes = config.DefaultUploadMaxBytes

// VideoStore persists uploaded bytes under a final name.
type VideoStore interface {
	Save(ctx context.Context, name string, r io.Reader, contentType string) (int64, error)
	Remove(ctx context.Context, name string) error
}

type UploadInput struct {
	File         io.Reader
	Filename     string
	DeclaredType string
	Size         int64
}

type VideoUpload struct {
	ID           string
	Filename     string
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Checksum     string
	CreatedAt    time.Time
}

type VideoService struct {
	store    VideoStore
	events   *redis.Client
	log      zerolog.Logger
	maxBytes int64
	now      func() time.Time
}

// NewVideoService builds the upload pipeline. events may be nil; a non-positive maxBytes
// means MaxUploadBytes.
func NewVideoService(store VideoStore, events *redis.Client, maxBytes int64, log zerolog.Logger) *VideoService {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	return &VideoService{
		store:    store,
		events:   events,
		log:      log,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

func (s *VideoService) MaxBytes() int64 {
	return s.maxBytes
}

func (s *VideoService) Upload(ctx context.Context, input UploadInput) (VideoUpload, error) {
	if input.File == nil {
		return VideoUpload{}, fileError("A file is required")
	}
	if input.Size > s.maxBytes {
		return VideoUpload{}, tooLarge(s.maxBytes)
	}

	head := make([]byte, sniffer.HeadSize)
	n, err := io.ReadFull(input.File, head)
	switch {
	case errors.Is(err, io.EOF):
		return VideoUpload{}, fileError("File is empty")
	case err != nil && !errors.Is(err, io.ErrUnexpectedEOF):
		return VideoUpload{}, fmt.Errorf("read head: %w", err)
	}
	head = head[:n]

	mimeType, err := sniffer.Classify(head, input.DeclaredType, input.Filename)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnsupportedType) {
			return VideoUpload{}, fileError("Only AVI and QuickTime (MOV) videos are accepted")
		}
		return VideoUpload{}, err
	}

	id := ids.New()
	createdAt := s.now().UTC()
	name := storage.StoredName(createdAt, id, input.Filename)

	hasher := sha256.New()
	body := io.MultiReader(bytes.NewReader(head), input.File)
	written, err := s.store.Save(ctx, name, io.TeeReader(io.LimitReader(body, s.maxBytes+1), hasher), mimeType)
	if err != nil {
		return VideoUpload{}, fmt.Errorf("store video: %w", err)
	}
	if written > s.maxBytes {
		if err := s.store.Remove(ctx, name); err != nil {
			s.log.Warn().Err(err).Str("filename", name).Msg("remove oversized upload failed")
		}
		return VideoUpload{}, tooLarge(s.maxBytes)
	}

	upload := VideoUpload{
		ID:           id,
		Filename:     name,
		OriginalName: input.Filename,
		MimeType:     mimeType,
		SizeBytes:    written,
		Checksum:     hex.EncodeToString(hasher.Sum(nil)),
		CreatedAt:    createdAt,
	}

	if err := s.publishUploaded(ctx, upload); err != nil {
		s.log.Warn().Err(err).Str("video_id", id).Msg("publish upload event failed")
	}

	s.log.Info().
		Str("video_id", id).
		Str("filename", name).
		Str("mime_type", mimeType).
		Int64("size_bytes", written).
		Msg("video stored")

	return upload, nil
}

func (s *VideoService) publishUploaded(ctx context.Context, upload VideoUpload) error {
	if s.events == nil {
		return nil
	}

	return s.events.XAdd(ctx, &redis.XAddArgs{
		Stream: UploadedStream,
		MaxLen: uploadedStreamCap,
		Approx: true,
		Values: map[string]any{
			"type":      "upload",
			"videoId":   upload.ID,
			"filename":  upload.Filename,
			"mimeType":  upload.MimeType,
			"sizeBytes": strconv.FormatInt(upload.SizeBytes, 10),
			"checksum":  upload.Checksum,
			"createdAt": upload.CreatedAt.Format(time.RFC3339Nano),
		},
	}).Err()
}

func fileError(msg string) error {
	return apperr.ValidationError("Validation failed", apperr.FieldError{Field: "file", Message: msg})
}

func tooLarge(limit int64) error {
	return apperr.PayloadTooLarge(fmt.Sprintf("File exceeds the %d MiB limit", limit>>20))
}
