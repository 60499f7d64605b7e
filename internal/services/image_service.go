package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/sjperalta/obrafin-api/internal/storage"
)

const defaultImageMaxDimension = 2480

// ImageService sits in front of the blob store and scales oversized JPEG and
// PNG scans down to maxDim on their longest side. Other content passes
// through untouched.
type ImageService struct {
	store  BlobStore
	maxDim int
}

func NewImageService(store BlobStore, maxDim int) *ImageService {
	if maxDim <= 0 {
		maxDim = defaultImageMaxDimension
	}
	return &ImageService{store: store, maxDim: maxDim}
}

func (s *ImageService) Store(ctx context.Context, data []byte, contentType, folder string) (storage.BlobRef, error) {
	if format, ok := imageFormat(contentType); ok {
		shrunk, err := s.shrink(data, format)
		if err != nil {
			return storage.BlobRef{}, err
		}
		data = shrunk
	}
	return s.store.Store(ctx, data, contentType, folder)
}

func (s *ImageService) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

func (s *ImageService) shrink(data []byte, format imaging.Format) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: image could not be decoded", storage.ErrInvalidContentType)
	}

	b := img.Bounds()
	if b.Dx() <= s.maxDim && b.Dy() <= s.maxDim {
		return data, nil
	}

	resized := imaging.Fit(img, s.maxDim, s.maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

func imageFormat(contentType string) (imaging.Format, bool) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return imaging.JPEG, true
	case "image/png":
		return imaging.PNG, true
	}
	return 0, false
}
