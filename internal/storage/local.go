package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local stores objects as files under a root directory.
type Local struct {
	root string
}

// NewLocal creates root if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Name() string { return l.root }

func (l *Local) URL(object string) string {
	p, err := l.path(object)
	if err != nil {
		return l.root
	}
	return p
}

func (l *Local) path(object string) (string, error) {
	clean := filepath.Clean("/" + object)
	if clean == "/" {
		return "", fmt.Errorf("empty object name")
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

func (l *Local) Upload(_ context.Context, localPath, object string) error {
	dst, err := l.path(object)
	if err != nil {
		return err
	}
	return copyFile(localPath, dst)
}

func (l *Local) Download(_ context.Context, object, localPath string) error {
	src, err := l.path(object)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", object, ErrObjectNotFound)
	}
	return copyFile(src, localPath)
}

func (l *Local) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, fileInfo(name, fi))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *Local) Exists(_ context.Context, object string) (bool, error) {
	p, err := l.path(object)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !fi.IsDir(), nil
}

func (l *Local) Delete(_ context.Context, object string) error {
	p, err := l.path(object)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", object, ErrObjectNotFound)
		}
		return err
	}
	return nil
}

func (l *Local) Attrs(_ context.Context, object string) (*ObjectInfo, error) {
	p, err := l.path(object)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", object, ErrObjectNotFound)
		}
		return nil, err
	}
	oi := fileInfo(object, fi)
	return &oi, nil
}

func fileInfo(name string, fi fs.FileInfo) ObjectInfo {
	return ObjectInfo{
		Name:        name,
		Size:        fi.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Updated:     fi.ModTime(),
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
