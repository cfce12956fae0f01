package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/embedprep/internal/logging"
	"github.com/dgallion1/embedprep/internal/storage"
)

// uploadFiles copies local files under a gs://bucket/prefix destination.
func (e *env) uploadFiles(ctx context.Context, dest string, paths ...string) error {
	if dest == "" || len(paths) == 0 {
		return nil
	}
	bucketName, prefix, err := storage.ParseGCSURL(dest)
	if err != nil {
		return fmt.Errorf("--upload: %w", err)
	}
	bucket, closeFn, err := e.openBucket(ctx, bucketName, e.log)
	if err != nil {
		return err
	}
	defer closeFn()

	for _, p := range paths {
		object := storage.Join(prefix, filepath.Base(p))
		if err := bucket.Upload(ctx, p, object); err != nil {
			return fmt.Errorf("upload %s: %w", p, err)
		}
		e.log.Info("Uploaded", logging.FieldFile, p, logging.FieldOutput, bucket.URL(object))
	}
	return nil
}

// fetchInput returns a local path for input. gs:// inputs are downloaded into
// dir first.
func (e *env) fetchInput(ctx context.Context, input, dir string) (string, error) {
	if !storage.IsGCSURL(input) {
		return input, nil
	}
	bucketName, object, err := storage.ParseGCSURL(input)
	if err != nil {
		return "", err
	}
	if object == "" {
		return "", fmt.Errorf("missing object in %q", input)
	}
	bucket, closeFn, err := e.openBucket(ctx, bucketName, e.log)
	if err != nil {
		return "", err
	}
	defer closeFn()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	local := filepath.Join(dir, filepath.Base(object))
	if err := bucket.Download(ctx, object, local); err != nil {
		return "", fmt.Errorf("download %s: %w", input, err)
	}
	e.log.Info("Downloaded", logging.FieldInput, input, logging.FieldPath, local)
	return local, nil
}
