package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func mustTempDir(t *testing.T) string {
	t.Helper()
	d := t.TempDir()
	// EvalSymlinks on macOS turns /var into /private/var.
	real, err := filepath.EvalSymlinks(d)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return real
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("month,product,total_amount\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestNewManager_ValidateConfig(t *testing.T) {
	m, err := NewManager(nil, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.ValidateConfig(); !errors.Is(err, ErrNoRoots) {
		t.Fatalf("validate config = %v, want ErrNoRoots", err)
	}

	m, err = NewManager([]string{mustTempDir(t), " "}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.ValidateConfig(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	if got := len(m.Roots()); got != 1 {
		t.Fatalf("roots len = %d, want 1", got)
	}
}

func TestNewManager_RejectsFileRoot(t *testing.T) {
	f := filepath.Join(mustTempDir(t), "sales.csv")
	writeFile(t, f)
	if _, err := NewManager([]string{f}, nil); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
	if _, err := NewManager(nil, []string{"csv"}); err == nil {
		t.Fatalf("expected error for extension without dot")
	}
}

func TestNewManagerFromEnv(t *testing.T) {
	root := mustTempDir(t)
	t.Setenv(EnvAllowedDirs, root)
	m, err := NewManagerFromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if got := m.Roots(); len(got) != 1 || got[0] != root {
		t.Fatalf("roots = %v, want [%s]", got, root)
	}
}

func TestValidateReadPath_AllowsWithinRoot(t *testing.T) {
	root := mustTempDir(t)
	sub := filepath.Join(root, "2024")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	fpath := filepath.Join(sub, "sales.csv")
	writeFile(t, fpath)

	m, err := NewManager([]string{root}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	got, err := m.ValidateReadPath(fpath)
	if err != nil {
		t.Fatalf("validate path: %v", err)
	}
	if got != fpath {
		t.Fatalf("got %q, want %q", got, fpath)
	}
}

func TestValidateReadPath_Denials(t *testing.T) {
	root := mustTempDir(t)
	outside := filepath.Join(mustTempDir(t), "escape.csv")
	writeFile(t, outside)
	bad := filepath.Join(root, "notes.md")
	writeFile(t, bad)

	m, err := NewManager([]string{root}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	cases := []struct {
		name string
		path string
		want error
	}{
		{"outside root", outside, ErrNotAllowed},
		{"unsupported extension", bad, ErrUnsupportedExtension},
		{"missing file", filepath.Join(root, "nope.csv"), ErrNotFound},
		{"empty", "", ErrNotAllowed},
		{"traversal", filepath.Join(root, "..", filepath.Base(filepath.Dir(outside)), "escape.csv"), ErrNotAllowed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := m.ValidateReadPath(c.path); !errors.Is(err, c.want) {
				t.Fatalf("err = %v, want %v", err, c.want)
			}
		})
	}
}

func TestValidateReadPath_SymlinkEscapeDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test skipped on Windows")
	}
	root := mustTempDir(t)
	target := filepath.Join(mustTempDir(t), "target.csv")
	writeFile(t, target)
	link := filepath.Join(root, "link.csv")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	m, err := NewManager([]string{root}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.ValidateReadPath(link); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed for symlink escape, got %v", err)
	}
}

func TestValidateWritePath(t *testing.T) {
	root := mustTempDir(t)
	m, err := NewManager([]string{root}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	want := filepath.Join(root, "dashboard.xlsx")
	got, err := m.ValidateWritePath(want, ".xlsx")
	if err != nil {
		t.Fatalf("validate write path: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if _, err := m.ValidateWritePath(filepath.Join(root, "dashboard.csv"), ".xlsx"); !errors.Is(err, ErrUnsupportedExtension) {
		t.Fatalf("expected ErrUnsupportedExtension, got %v", err)
	}
	if _, err := m.ValidateWritePath(filepath.Join(root, "missing", "d.xlsx"), ".xlsx"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	outside := filepath.Join(mustTempDir(t), "d.xlsx")
	if _, err := m.ValidateWritePath(outside, ".xlsx"); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
}
