package internal

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// maxAttachmentSize caps uploads at 10 MiB, checked client-side
	// before any bytes leave the machine.
	maxAttachmentSize = 10 << 20

	// signedURLTTL is how long an attachment link stays valid. Long
	// lived but not permanent.
	signedURLTTL = 7 * 24 * time.Hour
)

// ErrAttachmentTooLarge is surfaced as a transient notice; the composer
// state is left untouched.
var ErrAttachmentTooLarge = errors.New("attachment exceeds the size limit")

// AttachmentStore uploads files to the backend's S3-compatible object
// store and mints the signed links that ride on messages.
type AttachmentStore struct {
	client *minio.Client
	bucket string
}

// AttachmentStoreConfig carries the object store connection settings.
type AttachmentStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewAttachmentStore connects to the object store. The bucket is owned
// by the backend; the client never creates it.
func NewAttachmentStore(cfg AttachmentStoreConfig) (*AttachmentStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}
	return &AttachmentStore{client: client, bucket: cfg.Bucket}, nil
}

// UploadFile pushes a local file and returns the attachment to embed in
// the outgoing message. Oversized files are rejected before upload.
func (s *AttachmentStore) UploadFile(ctx context.Context, userID, path string) (Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, err
	}
	if err := checkAttachmentSize(info.Size()); err != nil {
		return Attachment{}, err
	}

	name := filepath.Base(path)
	key := attachmentKey(userID, name)
	contentType := attachmentContentType(name)

	if _, err := s.client.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return Attachment{}, fmt.Errorf("upload %s: %w", name, err)
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, signedURLTTL, nil)
	if err != nil {
		return Attachment{}, fmt.Errorf("sign %s: %w", name, err)
	}

	return Attachment{
		URL:      signed.String(),
		Name:     name,
		MimeType: contentType,
		Size:     info.Size(),
	}, nil
}

func checkAttachmentSize(size int64) error {
	if size > maxAttachmentSize {
		return ErrAttachmentTooLarge
	}
	return nil
}

// attachmentKey scopes objects per user and keeps the original
// extension so content type survives the round trip.
func attachmentKey(userID, filename string) string {
	return userID + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}

func attachmentContentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// isImageAttachment decides whether the TUI renders an image hint next
// to the link.
func isImageAttachment(name string) bool {
	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".") {
	case "jpg", "jpeg", "png", "gif", "webp":
		return true
	}
	return false
}
