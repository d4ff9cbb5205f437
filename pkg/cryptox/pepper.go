package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const pepperSize = 32

var (
	pepperMu sync.RWMutex
	pepper   string
)

// LoadPepper reads the server-wide pepper from path, creating the file with
// a fresh random value when it does not exist. An empty path keeps the
// pepper in memory only, which invalidates every hash on restart and is
// meant for tests and throwaway dev instances.
func LoadPepper(path string) error {
	value, err := readOrCreatePepper(path)
	if err != nil {
		return err
	}

	pepperMu.Lock()
	pepper = value
	pepperMu.Unlock()
	return nil
}

// Pepper returns the active pepper, generating an in-memory one on first
// use when LoadPepper was never called.
func Pepper() string {
	pepperMu.RLock()
	p := pepper
	pepperMu.RUnlock()
	if p != "" {
		return p
	}

	pepperMu.Lock()
	defer pepperMu.Unlock()
	if pepper == "" {
		pepper = MustGenerateToken(pepperSize)
	}
	return pepper
}

func readOrCreatePepper(path string) (string, error) {
	if path == "" {
		return GenerateToken(pepperSize)
	}
	path = filepath.Clean(path)

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		value := strings.TrimSpace(string(b))
		if value == "" {
			return "", fmt.Errorf("cryptox: pepper file %s is empty", path)
		}
		return value, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("cryptox: read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("cryptox: create pepper dir: %w", err)
	}

	raw := make([]byte, pepperSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	value := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
		return "", fmt.Errorf("cryptox: write pepper: %w", err)
	}
	return value, nil
}
