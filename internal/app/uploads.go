package app

import (
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"hotelbook/internal/adapters/observability"
	"hotelbook/internal/domain"
)

// ImageUploader ships a batch of images to the object store concurrently.
type ImageUploader struct {
	store domain.ObjectStore
	rl    *rate.Limiter
}

// NewImageUploader limits outbound uploads to rps per second; rps <= 0
// disables the limit.
func NewImageUploader(store domain.ObjectStore, rps int) *ImageUploader {
	u := &ImageUploader{store: store}
	if rps > 0 {
		u.rl = rate.NewLimiter(rate.Limit(rps), rps)
	}
	return u
}

// Upload returns one locator per image in input order. Oversized payloads
// fail the batch before any network call; any single upload failure fails
// the batch with an *domain.UploadError. Objects already written are left in
// place since their keys are namespaced and content-derived.
func (u *ImageUploader) Upload(ctx context.Context, namespace string, imgs []domain.Image) ([]string, error) {
	for i, img := range imgs {
		if len(img.Data) > domain.MaxImageBytes {
			return nil, fmt.Errorf("image %d (%s) is %d bytes: %w", i, img.Name, len(img.Data), domain.ErrPayloadTooLarge)
		}
	}
	if len(imgs) == 0 {
		return []string{}, nil
	}

	urls := make([]string, len(imgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range imgs {
		g.Go(func() error {
			if u.rl != nil {
				if err := u.rl.Wait(gctx); err != nil {
					return &domain.UploadError{Index: i, Name: img.Name, Err: err}
				}
			}
			start := time.Now()
			url, err := u.store.Upload(gctx, objectKey(namespace, img), img.ContentType, img.Data)
			if err != nil {
				observability.ObserveUpload("error", time.Since(start))
				return &domain.UploadError{Index: i, Name: img.Name, Err: err}
			}
			observability.ObserveUpload("ok", time.Since(start))
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Int("batch", len(imgs)).Msg("image batch failed")
		return nil, err
	}
	return urls, nil
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// objectKey derives a stable key from the owner namespace and the payload, so
// re-uploading the same bytes overwrites instead of duplicating.
func objectKey(namespace string, img domain.Image) string {
	ext, ok := imageExt[img.ContentType]
	if !ok {
		if exts, err := mime.ExtensionsByType(img.ContentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("hotels/%s/%s%s", namespace, uuid.NewSHA1(uuid.NameSpaceOID, img.Data), ext)
}
