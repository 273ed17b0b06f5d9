// Package storage persists uploaded images (recipe pictures and avatars) and returns their public URL.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// ErrInvalidImage is returned when an upload is not a supported base64 image data URI
var ErrInvalidImage = errors.New("invalid image")

// MaxImageBytes bounds the decoded size of an upload
const MaxImageBytes = 5 << 20

// ImageStore saves images given as base64 data URIs
type ImageStore interface {
	// Save stores the image under prefix and returns its public URL
	Save(ctx context.Context, prefix, dataURI string) (string, error)
	// Delete removes an image previously returned by Save. Unknown URLs are ignored.
	Delete(ctx context.Context, url string) error
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Image is a decoded upload
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// DecodeDataURI parses "data:image/<type>;base64,<payload>"
func DecodeDataURI(dataURI string) (*Image, error) {
	header, payload, ok := strings.Cut(strings.TrimSpace(dataURI), ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: expected a base64 data URI", ErrInvalidImage)
	}

	contentType := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64"))
	ext, supported := extensions[contentType]
	if !supported {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrInvalidImage, contentType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxImageBytes)
	}

	return &Image{Data: data, ContentType: contentType, Extension: ext}, nil
}

// objectKey builds a collision-free key under prefix
func objectKey(prefix, ext string) string {
	prefix = strings.Trim(prefix, "/")
	name := uuid.New().String() + ext
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
