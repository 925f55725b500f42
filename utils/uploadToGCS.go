package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ObjectStore receives product images.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// GCSStore writes to GCS_BUCKET.
type GCSStore struct {
	Bucket string
}

// NewGCSStoreFromEnv returns nil when GCS_BUCKET is not configured.
func NewGCSStoreFromEnv() *GCSStore {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return nil
	}
	return &GCSStore{Bucket: bucket}
}

// getGoogleClient prefers ADC; GCS_CREDENTIALS_JSON supplies explicit credentials (e.g. locally).
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// Put uploads data and returns its public URL.
func (s *GCSStore) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if s == nil || s.Bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(s.Bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return BuildObjectAccessURL(objectName), nil
}
