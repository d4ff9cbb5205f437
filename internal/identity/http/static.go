package http

import (
	"io/fs"
	"net/http"
	"strings"
)

// noListing hides directories so the media tree cannot be enumerated.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

func trimSlashes(s string) string { return strings.Trim(s, "/") }
