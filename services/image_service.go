package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"linkup/contract"
	"linkup/domain"
	"linkup/domain/mimetypes"
	"linkup/errors"
	"linkup/observability"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

const (
	dataURIPrefix = "data:image/"
	base64Marker  = ";base64,"
)

// ImagePolicy gathers every constraint applied to an uploaded image.
type ImagePolicy struct {
	MaxBytes      int64
	Allowed       []mimetypes.MIME
	UploadTimeout time.Duration
	MaxDimension  int
	Quality       int
}

func (p ImagePolicy) allows(m mimetypes.MIME) bool {
	return lo.Contains(p.Allowed, m)
}

// ImageService turns a data URI into a stored image URL.
type ImageService struct {
	log        *slog.Logger
	store      contract.ImageStore
	policy     ImagePolicy
	monitoring *observability.MonitoringManager
}

func NewImageService(log *slog.Logger, store contract.ImageStore, policy ImagePolicy,
	monitoring *observability.MonitoringManager) *ImageService {
	return &ImageService{log: log, store: store, policy: policy, monitoring: monitoring}
}

// Upload validates dataURI against the policy then uploads it under folder.
// The declared format and the sniffed content must both be on the accept-list,
// and the decoded payload must fit MaxBytes. The upload itself is bounded by UploadTimeout.
func (s *ImageService) Upload(ctx context.Context, dataURI, folder string) (string, error) {
	img, err := s.decode(dataURI)
	if err != nil {
		s.monitoring.IncrUploadFailures()
		return "", err
	}
	img.Folder = folder

	uploadCtx, cancel := context.WithTimeout(ctx, s.policy.UploadTimeout)
	defer cancel()

	start := time.Now()
	url, err := s.store.Upload(uploadCtx, img)
	if err != nil {
		s.monitoring.IncrUploadFailures()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(uploadCtx.Err(), context.DeadlineExceeded) {
			s.log.Warn("Image upload timed out", "timeout", s.policy.UploadTimeout)
			return "", errors.ErrUploadTimeout
		}
		s.log.Error("Image upload failed", "error", err)
		return "", fmt.Errorf("%w: %v", errors.ErrUpload, err)
	}
	s.monitoring.IncrImagesUploaded()
	s.log.Debug("Image uploaded", "folder", folder, "size", len(img.Data), "latency_ms", time.Since(start).Milliseconds())
	return url, nil
}

func (s *ImageService) decode(dataURI string) (domain.ImageUpload, error) {
	if !strings.HasPrefix(dataURI, dataURIPrefix) {
		return domain.ImageUpload{}, errors.ErrInvalidImageFormat
	}
	header, payload, found := strings.Cut(dataURI[len(dataURIPrefix):], base64Marker)
	if !found {
		return domain.ImageUpload{}, errors.ErrInvalidImageFormat
	}

	declared := mimetypes.FromImageFormat(header)
	if !s.policy.allows(declared) {
		return domain.ImageUpload{}, fmt.Errorf("%w: %s is not accepted", errors.ErrInvalidImageFormat, header)
	}

	// Reject before allocating the decoded buffer
	if decodedSize(payload) > s.policy.MaxBytes {
		return domain.ImageUpload{}, errors.ErrImageTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return domain.ImageUpload{}, fmt.Errorf("%w: payload is not valid base64", errors.ErrInvalidImageFormat)
	}

	detected := mimetype.Detect(data)
	sniffed, ok := lo.Find(s.policy.Allowed, func(m mimetypes.MIME) bool {
		_, match := mimetypes.Matches(detected.String(), m)
		return match
	})
	if !ok {
		return domain.ImageUpload{}, fmt.Errorf("%w: content is %s", errors.ErrInvalidImageFormat, detected.String())
	}

	return domain.ImageUpload{
		Data:         data,
		MIME:         sniffed,
		MaxDimension: s.policy.MaxDimension,
		Quality:      s.policy.Quality,
	}, nil
}

// decodedSize is the exact byte length of a padded base64 payload.
func decodedSize(payload string) int64 {
	n := int64(len(payload)) / 4 * 3
	if strings.HasSuffix(payload, "==") {
		n -= 2
	} else if strings.HasSuffix(payload, "=") {
		n--
	}
	return n
}
