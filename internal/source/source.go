// Package source loads the sales and target inputs over HTTP(S) or from
// allow-listed local files and turns them into tabular Datasets.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vinodismyname/salesdash/config"
	"github.com/vinodismyname/salesdash/internal/security"
	"github.com/vinodismyname/salesdash/internal/tabular"
	"github.com/vinodismyname/salesdash/pkg/version"
)

var (
	// ErrFetch wraps transport failures and non-2xx responses.
	ErrFetch = errors.New("source: fetch failed")
	// ErrTooLarge is returned when a source exceeds the byte cap.
	ErrTooLarge = errors.New("source: exceeds size limit")
	// ErrNoSource is returned when a location is empty.
	ErrNoSource = errors.New("source: location not configured")
)

// Spec describes one input.
type Spec struct {
	Location  string
	Encoding  string
	Delimiter rune
	Sheet     string
}

// SpecFromConfig converts a config.Source. Only the first rune of the
// delimiter is used; "\t" and "tab" mean a tab.
func SpecFromConfig(s config.Source) Spec {
	spec := Spec{Location: strings.TrimSpace(s.Location), Encoding: s.Encoding, Sheet: s.Sheet}
	switch d := s.Delimiter; d {
	case "":
	case `\t`, "tab":
		spec.Delimiter = '\t'
	default:
		spec.Delimiter = []rune(d)[0]
	}
	return spec
}

// Observer is notified after every fetch.
type Observer interface {
	OnSourceFetched(location string, size int, elapsed time.Duration, err error)
}

// Loader fetches and parses sources.
type Loader struct {
	Client   *http.Client
	Guard    *security.Manager
	MaxBytes int64
	Timeout  time.Duration
	Observer Observer
}

// NewLoader returns a Loader using a dedicated http.Client.
func NewLoader(guard *security.Manager, maxBytes int64, timeout time.Duration) *Loader {
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxSourceBytes
	}
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	return &Loader{
		Client:   &http.Client{},
		Guard:    guard,
		MaxBytes: maxBytes,
		Timeout:  timeout,
	}
}

// Inputs is the parsed pair of sources.
type Inputs struct {
	Sales   *tabular.Dataset
	Targets *tabular.Dataset
}

// LoadPair loads both sources concurrently. The first failure cancels the
// other fetch and is returned.
func (l *Loader) LoadPair(ctx context.Context, sales, targets Spec, opts tabular.Options) (Inputs, error) {
	var in Inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ds, err := l.Load(gctx, sales, opts)
		if err != nil {
			return fmt.Errorf("sales: %w", err)
		}
		in.Sales = ds
		return nil
	})
	g.Go(func() error {
		ds, err := l.Load(gctx, targets, opts)
		if err != nil {
			return fmt.Errorf("targets: %w", err)
		}
		in.Targets = ds
		return nil
	})
	if err := g.Wait(); err != nil {
		return Inputs{}, err
	}
	return in, nil
}

// Load fetches one source, decodes it and parses it as CSV or xlsx
// according to the location's extension.
func (l *Loader) Load(ctx context.Context, spec Spec, opts tabular.Options) (*tabular.Dataset, error) {
	raw, err := l.Fetch(ctx, spec.Location)
	if err != nil {
		return nil, err
	}

	switch ext := Ext(spec.Location); ext {
	case ".xlsx":
		return parseWorkbook(raw, spec.Sheet, opts)
	case ".tsv":
		if spec.Delimiter == 0 {
			spec.Delimiter = '\t'
		}
	}
	if spec.Delimiter != 0 {
		opts.Delimiter = spec.Delimiter
	}

	text, err := Decode(raw, spec.Encoding)
	if err != nil {
		return nil, err
	}
	return tabular.ParseBytes(text, opts)
}

// Fetch returns the raw bytes at loc, honoring the timeout and size cap.
func (l *Loader) Fetch(ctx context.Context, loc string) ([]byte, error) {
	if strings.TrimSpace(loc) == "" {
		return nil, ErrNoSource
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	var (
		b   []byte
		err error
	)
	if IsRemote(loc) {
		b, err = l.fetchHTTP(ctx, loc)
	} else {
		b, err = l.readFile(loc)
	}

	elapsed := time.Since(start)
	if l.Observer != nil {
		l.Observer.OnSourceFetched(loc, len(b), elapsed, err)
	}
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("source", loc).Int("bytes", len(b)).Dur("elapsed", elapsed).Msg("source fetched")
	return b, nil
}

func (l *Loader) fetchHTTP(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, loc, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, loc, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, loc, resp.StatusCode)
	}
	if resp.ContentLength > l.MaxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, loc, resp.ContentLength, l.MaxBytes)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, l.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, loc, err)
	}
	if int64(len(b)) > l.MaxBytes {
		return nil, fmt.Errorf("%w: %s (limit %d)", ErrTooLarge, loc, l.MaxBytes)
	}
	return b, nil
}

func (l *Loader) readFile(loc string) ([]byte, error) {
	if l.Guard == nil {
		return nil, security.ErrNotAllowed
	}
	p, err := l.Guard.ValidateReadPath(loc)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, loc, err)
	}
	if info.Size() > l.MaxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, loc, info.Size(), l.MaxBytes)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, loc, err)
	}
	return b, nil
}

// IsRemote reports whether loc is an http(s) URL.
func IsRemote(loc string) bool {
	u, err := url.Parse(strings.TrimSpace(loc))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Ext returns the lower-cased extension of a path or URL path.
func Ext(loc string) string {
	if IsRemote(loc) {
		u, _ := url.Parse(strings.TrimSpace(loc))
		return strings.ToLower(path.Ext(u.Path))
	}
	return strings.ToLower(filepath.Ext(loc))
}

// parseWorkbook reads one sheet (the first when sheet is empty).
func parseWorkbook(raw []byte, sheet string, opts tabular.Options) (*tabular.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", tabular.ErrNotText, err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return tabular.FromGrid(nil, opts), nil
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %w", tabular.ErrNotText, sheet, err)
	}
	return tabular.FromGrid(rows, opts), nil
}
