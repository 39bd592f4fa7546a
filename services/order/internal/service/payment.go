package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/google/uuid"
)

const DefaultMaxProofBytes = 5 << 20

// ProofFile is an uploaded payment proof image.
type ProofFile struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

// ValidateProof runs before any network call.
func ValidateProof(size int64, contentType string, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxProofBytes
	}
	if size <= 0 {
		return fmt.Errorf("%w: empty file", ErrValidation)
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrFileTooLarge, size, maxBytes)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return fmt.Errorf("%w: got %q", ErrInvalidFileType, contentType)
	}
	return nil
}

type PaymentService struct {
	orders   OrderStore
	storage  ObjectStorage
	notify   *Notifier
	bucket   string
	maxBytes int64
	clock    models.Clock
}

func NewPaymentService(orders OrderStore, storage ObjectStorage, notify *Notifier, bucket string, maxBytes int64, clock models.Clock) *PaymentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxProofBytes
	}
	return &PaymentService{
		orders:   orders,
		storage:  storage,
		notify:   notify,
		bucket:   bucket,
		maxBytes: maxBytes,
		clock:    clock,
	}
}

func (s *PaymentService) MaxBytes() int64 { return s.maxBytes }

// ProofPath is payment_<order>/<user>_<unix ms>_<random>.<ext>.
func (s *PaymentService) ProofPath(orderID, userID int64, ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("payment_%d/%d_%d_%s.%s", orderID, userID, s.clock.Now().UnixMilli(), suffix, ext)
}

// UploadProof stores the image and links it to the order. A failure leaves
// the order untouched so the user can retry.
func (s *PaymentService) UploadProof(ctx context.Context, sess session.Session, orderID int64, f ProofFile) (models.PaymentProof, error) {
	l := logging.FromContext(ctx).With("order_id", orderID, "user_id", sess.UserID)

	if err := ValidateProof(f.Size, f.ContentType, s.maxBytes); err != nil {
		return models.PaymentProof{}, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return models.PaymentProof{}, fmt.Errorf("%w: read file: %v", ErrValidation, err)
	}
	head = head[:n]
	sniffed := http.DetectContentType(head)
	if !strings.HasPrefix(sniffed, "image/") {
		return models.PaymentProof{}, fmt.Errorf("%w: content is %s", ErrInvalidFileType, sniffed)
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return models.PaymentProof{}, upstream(err, fmt.Sprintf("order %d", orderID))
	}
	if !sess.CanAccess(o.UserID) {
		return models.PaymentProof{}, fmt.Errorf("%w: order %d belongs to another user", ErrUnauthorized, orderID)
	}

	path := s.ProofPath(orderID, sess.UserID, proofExt(f.Filename, sniffed))
	body := io.MultiReader(bytes.NewReader(head), f.Body)
	if err := s.storage.Upload(ctx, s.bucket, path, body, sniffed, false); err != nil {
		l.Warn("upload_proof_error", "path", path, "error", err)
		return models.PaymentProof{}, upstream(err, "upload payment proof")
	}

	url := s.storage.PublicURL(s.bucket, path)
	filename := filepath.Base(f.Filename)
	fields := map[string]any{
		"payment_proof_url":      url,
		"payment_proof_filename": filename,
		"updated_at":             models.At(s.clock.Now()),
	}
	if err := s.orders.PatchOrder(ctx, orderID, fields); err != nil {
		l.Warn("upload_proof_error", "step", "link", "error", err)
		if rerr := s.storage.Remove(ctx, s.bucket, []string{path}); rerr != nil {
			l.Warn("upload_proof_cleanup_error", "path", path, "error", rerr)
		}
		return models.PaymentProof{}, upstream(err, "link payment proof")
	}

	if o.HasPaymentProof() {
		s.removeReplaced(ctx, *o.PaymentProofURL)
	}

	s.notify.Publish(ctx, events.Event{
		Type:        events.TypePaymentProof,
		OrderID:     orderID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Data:        map[string]any{"url": url},
	})
	s.notify.Reindex(ctx, orderID)

	l.Info("payment_proof_uploaded", "path", path, "bytes", f.Size)
	return models.PaymentProof{OrderID: orderID, URL: url, Filename: filename}, nil
}

func (s *PaymentService) GetProof(ctx context.Context, sess session.Session, orderID int64) (models.PaymentProof, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return models.PaymentProof{}, upstream(err, fmt.Sprintf("order %d", orderID))
	}
	if !sess.CanAccess(o.UserID) {
		return models.PaymentProof{}, fmt.Errorf("%w: order %d belongs to another user", ErrUnauthorized, orderID)
	}
	if !o.HasPaymentProof() {
		return models.PaymentProof{}, fmt.Errorf("%w: order %d has no payment proof", ErrNotFound, orderID)
	}
	p := models.PaymentProof{OrderID: orderID, URL: *o.PaymentProofURL}
	if o.PaymentProofFilename != nil {
		p.Filename = *o.PaymentProofFilename
	}
	return p, nil
}

// removeReplaced deletes the previous proof object. Failures only leave an
// orphaned file behind.
func (s *PaymentService) removeReplaced(ctx context.Context, oldURL string) {
	path, ok := s.storage.PathFromPublicURL(s.bucket, oldURL)
	if !ok {
		return
	}
	if err := s.storage.Remove(ctx, s.bucket, []string{path}); err != nil {
		logging.FromContext(ctx).Warn("upload_proof_cleanup_error", "path", path, "error", err)
	}
}

func proofExt(filename, contentType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
