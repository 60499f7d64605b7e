package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/jobs"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/registry"
	"github.com/sjperalta/obrafin-api/internal/storage"
	"github.com/sjperalta/obrafin-api/pkg/logger"
)

// BlobStore keeps attachment bytes outside the database.
type BlobStore interface {
	Store(ctx context.Context, data []byte, contentType, folder string) (storage.BlobRef, error)
	Delete(ctx context.Context, key string) error
}

// InvoiceValidator checks an invoice against the tax registry.
type InvoiceValidator interface {
	Validate(ctx context.Context, req registry.Request) (registry.Result, error)
}

// SupplierDirectory answers whether a supplier may be invoiced.
type SupplierDirectory interface {
	FindByID(ctx context.Context, id uint) (*models.Supplier, error)
	IsBlacklisted(ctx context.Context, supplierID uint) (bool, error)
}

// AsyncRunner runs side effects that must not hold up the caller.
type AsyncRunner interface {
	EnqueueAsync(name string, job jobs.Job)
}

type requestMetaKey struct{}

// RequestMeta is request provenance recorded with every audit entry.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// WithRequestMeta attaches request provenance to ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// newCode builds a human readable identifier such as CST-20240301-1A2B3C4D.
func newCode(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), suffix)
}

// deleteBlobLater removes a replaced attachment without failing the request.
func deleteBlobLater(async AsyncRunner, blobs BlobStore, key string) {
	if key == "" || async == nil {
		return
	}
	async.EnqueueAsync("delete-blob", func(ctx context.Context) error {
		return blobs.Delete(ctx, key)
	})
}

// storeError separates rejected uploads from storage failures.
func storeError(err error) error {
	if errors.Is(err, storage.ErrInvalidContentType) || errors.Is(err, storage.ErrTooLarge) {
		return apperrors.Validation("%v", err)
	}
	return fmt.Errorf("failed to store attachment: %w", err)
}

// reportInvariant logs and forwards a broken invariant; these indicate a bug.
func reportInvariant(ctx context.Context, err error) {
	logger.WithContext(ctx).Error("invariant violation", "error", err)
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
