// Package media turns a locally staged upload into a stable public URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyPath is returned when there is nothing to upload.
var ErrEmptyPath = errors.New("media: empty local path")

// Resolver stores the file at localPath and returns its public URL. The
// caller owns localPath and removes it afterwards.
type Resolver interface {
	Resolve(ctx context.Context, localPath string) (string, error)

	// Remove deletes an object previously returned by Resolve. URLs the
	// resolver did not issue and objects already gone are not errors.
	Remove(ctx context.Context, url string) error
}

// objectKey builds a collision free key that keeps the upload's extension.
func objectKey(prefix, localPath string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(localPath))
	key := fmt.Sprintf("%d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.New(), ext)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

func contentType(localPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// keyOf is the inverse of joinURL. It reports false for URLs outside base
// and for keys that would escape it.
func keyOf(base, url string) (string, bool) {
	key, ok := strings.CutPrefix(url, strings.TrimRight(base, "/")+"/")
	if !ok || key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", false
	}
	return key, true
}
