// Package storage moves pipeline files to and from object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when an object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is the metadata of a stored object.
type ObjectInfo struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Updated     time.Time `json:"updated"`
}

// Bucket is a flat object namespace.
type Bucket interface {
	Upload(ctx context.Context, localPath, object string) error
	Download(ctx context.Context, object, localPath string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Exists(ctx context.Context, object string) (bool, error)
	Delete(ctx context.Context, object string) error
	Attrs(ctx context.Context, object string) (*ObjectInfo, error)
	// URL locates object for humans and logs.
	URL(object string) string
	Name() string
}

// IsGCSURL reports whether s is a gs:// URL.
func IsGCSURL(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// ParseGCSURL splits gs://bucket/path into bucket and object.
func ParseGCSURL(raw string) (bucket, object string, err error) {
	if !IsGCSURL(raw) {
		return "", "", fmt.Errorf("not a gs:// url: %q", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing bucket in %q", raw)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// ObjectPath returns the object part of a gs:// URL, or raw unchanged when it
// is a plain path.
func ObjectPath(raw string) string {
	if !IsGCSURL(raw) {
		return raw
	}
	_, object, err := ParseGCSURL(raw)
	if err != nil {
		return ""
	}
	return object
}

// Join builds an object name from a prefix and a file name.
func Join(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
