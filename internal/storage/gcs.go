package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS is a Google Cloud Storage bucket. Credentials come from Application
// Default Credentials unless options say otherwise.
type GCS struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
	log    *slog.Logger
}

// NewGCS opens bucket. Extra client options are passed through, e.g. an
// endpoint for an emulator.
func NewGCS(ctx context.Context, bucket string, log *slog.Logger, opts ...option.ClientOption) (*GCS, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &GCS{client: client, bucket: client.Bucket(bucket), name: bucket, log: log}, nil
}

func (g *GCS) Name() string { return g.name }

func (g *GCS) URL(object string) string { return "gs://" + g.name + "/" + object }

// Close releases the client.
func (g *GCS) Close() error { return g.client.Close() }

// BucketExists reports whether the bucket is reachable with the current
// credentials.
func (g *GCS) BucketExists(ctx context.Context) bool {
	if _, err := g.bucket.Attrs(ctx); err != nil {
		g.log.Warn("bucket does not exist or is not accessible", "bucket", g.name, "error", err)
		return false
	}
	return true
}

func (g *GCS) Upload(ctx context.Context, localPath, object string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := g.bucket.Object(object).NewWriter(ctx)
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload %s to gs://%s/%s: %w", localPath, g.name, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s to gs://%s/%s: %w", localPath, g.name, object, err)
	}
	g.log.Info("uploaded", "file", localPath, "object", "gs://"+g.name+"/"+object)
	return nil
}

func (g *GCS) Download(ctx context.Context, object, localPath string) error {
	r, err := g.bucket.Object(object).NewReader(ctx)
	if err != nil {
		return g.wrap(object, err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("download gs://%s/%s: %w", g.name, object, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	g.log.Info("downloaded", "object", "gs://"+g.name+"/"+object, "file", localPath)
	return nil
}

func (g *GCS) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := g.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	var out []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", g.name, prefix, err)
		}
		out = append(out, info(attrs))
	}
	return out, nil
}

func (g *GCS) Exists(ctx context.Context, object string) (bool, error) {
	_, err := g.bucket.Object(object).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *GCS) Delete(ctx context.Context, object string) error {
	if err := g.bucket.Object(object).Delete(ctx); err != nil {
		return g.wrap(object, err)
	}
	return nil
}

func (g *GCS) Attrs(ctx context.Context, object string) (*ObjectInfo, error) {
	attrs, err := g.bucket.Object(object).Attrs(ctx)
	if err != nil {
		return nil, g.wrap(object, err)
	}
	oi := info(attrs)
	return &oi, nil
}

func (g *GCS) wrap(object string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("gs://%s/%s: %w", g.name, object, ErrObjectNotFound)
	}
	return fmt.Errorf("gs://%s/%s: %w", g.name, object, err)
}

func info(a *gcs.ObjectAttrs) ObjectInfo {
	return ObjectInfo{Name: a.Name, Size: a.Size, ContentType: a.ContentType, Updated: a.Updated}
}
