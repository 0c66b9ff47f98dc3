package services

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// ImageUpload is one raw image attached to a user message.
type ImageUpload struct {
	Data     []byte
	MimeHint string
}

// ImageService stores uploaded appliance photos and runs them through the
// vision model. Storage uploads fan out concurrently; the analysis call is
// one batched request. A vision failure leaves the observations without a
// description, which the context aggregator simply skips.
type ImageService struct {
	db       core.DbClient
	storage  core.ObjectClient
	vision   core.VisionClient
	bucket   string
	maxBytes int
	timeout  time.Duration
	logger   *zap.Logger
}

func NewImageService(db core.DbClient, storage core.ObjectClient, vision core.VisionClient, bucket string, maxBytes int, timeout time.Duration, logger *zap.Logger) *ImageService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ImageService{
		db: db, storage: storage, vision: vision,
		bucket: bucket, maxBytes: maxBytes, timeout: timeout, logger: logger,
	}
}

// Ingest validates, stores and analyzes the images for one user message.
// It returns the persisted observations and the vision token usage, which
// is nil when analysis was skipped or failed.
func (s *ImageService) Ingest(ctx context.Context, sessionID, messageID, userNote, locale string, uploads []ImageUpload) ([]models.ImageObservation, *models.TokenUsage, error) {
	if len(uploads) == 0 {
		return nil, nil, nil
	}

	for i, up := range uploads {
		if len(up.Data) == 0 {
			return nil, nil, fmt.Errorf("%w: image %d is empty", core.ErrValidation, i)
		}
		if s.maxBytes > 0 && len(up.Data) > s.maxBytes {
			return nil, nil, fmt.Errorf("%w: image %d exceeds %d bytes", core.ErrValidation, i, s.maxBytes)
		}
	}

	observations := make([]models.ImageObservation, len(uploads))
	payloads := make([]core.ImagePayload, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, up := range uploads {
		i, up := i, up
		g.Go(func() error {
			mime := resolveImageMime(up.MimeHint, up.Data)
			obsID := uuid.NewString()
			key := s.objectKey(sessionID, obsID, mime)

			url, err := s.storage.UploadFile(gctx, s.bucket, key, up.Data, mime)
			if err != nil {
				return fmt.Errorf("store image %d: %w", i, err)
			}

			observations[i] = models.ImageObservation{
				ID:         obsID,
				SessionID:  sessionID,
				MessageID:  messageID,
				StorageURI: url,
				MimeType:   mime,
				CreatedAt:  time.Now().UTC(),
			}
			payloads[i] = core.ImagePayload{Data: up.Data, Mime: mime}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrExternal, err)
	}

	for i := range observations {
		if err := s.db.CreateImageObservation(ctx, &observations[i]); err != nil {
			return nil, nil, err
		}
	}

	usage := s.analyze(ctx, observations, payloads, userNote, locale)
	return observations, usage, nil
}

// analyze runs the vision model and fills each observation once. Failures
// are tolerated; the turn proceeds without image context.
func (s *ImageService) analyze(ctx context.Context, observations []models.ImageObservation, payloads []core.ImagePayload, userNote, locale string) *models.TokenUsage {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summaries, usage, err := s.vision.Describe(callCtx, payloads, userNote, locale)
	if err != nil {
		s.logger.Warn("image analysis failed", zap.Error(err))
		return usage
	}

	for i := range observations {
		if i >= len(summaries) {
			break
		}
		sum := summaries[i]
		if sum.Description == "" {
			continue
		}
		if err := s.db.FillImageAnalysis(ctx, observations[i].ID, sum.Description, sum.Confidence, sum.Label, sum.Details); err != nil {
			s.logger.Warn("image analysis not saved", zap.String("image_id", observations[i].ID), zap.Error(err))
			continue
		}
		observations[i].Description = sum.Description
		observations[i].Confidence = sum.Confidence
		observations[i].Label = sum.Label
		observations[i].Details = sum.Details
	}
	return usage
}

func (s *ImageService) objectKey(sessionID, obsID, mime string) string {
	ext := "bin"
	switch mime {
	case "image/png":
		ext = "png"
	case "image/jpeg":
		ext = "jpg"
	case "image/gif":
		ext = "gif"
	case "image/webp":
		ext = "webp"
	case "image/bmp":
		ext = "bmp"
	}
	return path.Join("sessions", sessionID, obsID+"."+ext)
}
