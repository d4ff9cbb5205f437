package http

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
)

// multipartMemory is how much of a form is held in memory before
// net/http spills file parts to its own temp files.
const multipartMemory = 1 << 20

var errBadUpload = domain.Validation("Invalid file upload")

func isMultipart(req *http.Request) bool {
	return strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data")
}

// parseMultipart parses a multipart body. Non-multipart requests parse to
// an empty form.
func parseMultipart(req *http.Request) error {
	if !isMultipart(req) {
		return nil
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		return domain.WithCause(errBadUpload, err)
	}
	return nil
}

// stageUpload copies the named file part into the upload directory and
// returns its path, or "" when the part is absent. The caller owns the
// file from then on.
func (r *Router) stageUpload(req *http.Request, field string) (string, error) {
	if req.MultipartForm == nil {
		return "", nil
	}
	src, hdr, err := req.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", domain.WithCause(errBadUpload, err)
	}
	defer src.Close()

	dir := r.opts.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.Internal(err)
	}

	dst, err := os.CreateTemp(dir, "upload-*"+uploadExt(hdr.Filename))
	if err != nil {
		return "", domain.Internal(err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", domain.WithCause(errBadUpload, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", domain.Internal(err)
	}
	return dst.Name(), nil
}

// uploadExt keeps a short alphanumeric extension from a client filename.
func uploadExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
