package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Disk copies uploads under Dir and serves them from BaseURL.
type Disk struct {
	Dir     string
	BaseURL string
}

var _ Resolver = (*Disk)(nil)

func (d *Disk) Resolve(ctx context.Context, localPath string) (string, error) {
	const op = "media.Disk.Resolve"
	if localPath == "" {
		return "", ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := objectKey("", localPath, time.Now().UTC())
	dst := filepath.Join(d.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := copyFile(dst, localPath); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return joinURL(d.BaseURL, key), nil
}

func (d *Disk) Remove(ctx context.Context, url string) error {
	key, ok := keyOf(d.BaseURL, url)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(d.Dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("media.Disk.Remove: %w", err)
	}
	return nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
