package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Store uploads objects to a Google Cloud Storage bucket and makes
// them publicly readable.
type Store struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// Config holds GCS store configuration
type Config struct {
	Bucket string

	// CredentialsFile is passed to the client when set; empty falls
	// back to application default credentials
	CredentialsFile string
}

// NewStore creates a GCS-backed object store
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is empty")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Upload writes the stream to the bucket with the given content type,
// marks the object public-read and returns its public URL. I/O errors
// are returned wrapped; nothing is retried.
func (s *Store) Upload(ctx context.Context, object, contentType string, r io.Reader) (string, error) {
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.ACL = []storage.ACLRule{{Entity: storage.AllUsers, Role: storage.RoleReader}}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}

	s.logger.Info("object uploaded",
		zap.String("bucket", s.bucket),
		zap.String("object", object))

	return PublicURL(s.bucket, object), nil
}

// Close releases the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

// PublicURL returns the canonical public URL for a bucket object
func PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}
