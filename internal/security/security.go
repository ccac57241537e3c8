// Package security guards local file access: sources may only be read from,
// and exports only written to, allow-listed directories.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinodismyname/salesdash/pkg/validation"
)

// EnvAllowedDirs holds the allow-list as an OS path list.
const EnvAllowedDirs = "SALESDASH_ALLOWED_DIRS"

var (
	// ErrNotAllowed indicates the path is outside the allow-list roots.
	ErrNotAllowed = errors.New("security: path not allowed")
	// ErrUnsupportedExtension indicates the file extension is not accepted.
	ErrUnsupportedExtension = errors.New("security: unsupported file extension")
	// ErrNotFound indicates the file does not exist or is not accessible.
	ErrNotFound = errors.New("security: file not found")
	// ErrNoRoots indicates that no allow-list directory is configured.
	ErrNoRoots = errors.New("security: no allowed directories configured")
)

// Manager holds canonical allow-list roots and accepted extensions.
type Manager struct {
	roots []string
	exts  map[string]struct{}
}

// NewManager canonicalizes each directory (absolute, symlinks resolved) and
// records the accepted extensions. Empty exts means validation.SourceExtensions.
func NewManager(dirs []string, exts []string) (*Manager, error) {
	if len(exts) == 0 {
		exts = validation.SourceExtensions
	}
	m := &Manager{exts: make(map[string]struct{}, len(exts))}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") || len(e) < 2 {
			return nil, fmt.Errorf("security: invalid extension %q", e)
		}
		m.exts[e] = struct{}{}
	}

	for _, d := range dirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		real, err := canonical(d)
		if err != nil {
			return nil, fmt.Errorf("security: allow-list entry %q: %w", d, err)
		}
		info, err := os.Stat(real)
		if err != nil {
			return nil, fmt.Errorf("security: stat %q: %w", real, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("security: allow-list entry is not a directory: %q", real)
		}
		m.roots = append(m.roots, real)
	}
	return m, nil
}

// NewManagerFromEnv reads SALESDASH_ALLOWED_DIRS. An unset variable yields
// an empty allow-list, so every local path is rejected.
func NewManagerFromEnv() (*Manager, error) {
	var dirs []string
	if list := os.Getenv(EnvAllowedDirs); list != "" {
		dirs = filepath.SplitList(list)
	}
	return NewManager(dirs, nil)
}

// Roots returns a copy of the canonical allow-list roots.
func (m *Manager) Roots() []string {
	return append([]string(nil), m.roots...)
}

// ValidateConfig fails when no roots are configured.
func (m *Manager) ValidateConfig() error {
	if len(m.roots) == 0 {
		return ErrNoRoots
	}
	return nil
}

// ValidateReadPath checks that input names an existing regular file with an
// accepted extension under one of the roots and returns its canonical path.
func (m *Manager) ValidateReadPath(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrNotAllowed
	}
	if err := m.checkExt(input); err != nil {
		return "", err
	}
	real, err := canonical(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: resolve: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: stat: %w", err)
	}
	if info.IsDir() || !m.contains(real) {
		return "", ErrNotAllowed
	}
	return real, nil
}

// ValidateWritePath checks that input's parent directory exists under one of
// the roots and that the extension is ext. The file itself may not exist yet.
func (m *Manager) ValidateWritePath(input, ext string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrNotAllowed
	}
	if !strings.EqualFold(filepath.Ext(input), ext) {
		return "", ErrUnsupportedExtension
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("security: abs path: %w", err)
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: resolve dir: %w", err)
	}
	target := filepath.Join(dir, filepath.Base(abs))
	if info, err := os.Lstat(target); err == nil && (info.IsDir() || info.Mode()&os.ModeSymlink != 0) {
		return "", ErrNotAllowed
	}
	if !m.contains(target) {
		return "", ErrNotAllowed
	}
	return target, nil
}

func (m *Manager) checkExt(p string) error {
	if _, ok := m.exts[strings.ToLower(filepath.Ext(p))]; !ok {
		return ErrUnsupportedExtension
	}
	return nil
}

// contains reports whether real lies strictly inside one of the roots.
func (m *Manager) contains(real string) bool {
	for _, root := range m.roots {
		rel, err := filepath.Rel(root, real)
		if err != nil || rel == "." {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(real), nil
}
