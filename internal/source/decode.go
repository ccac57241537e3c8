package source

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/vinodismyname/salesdash/internal/tabular"
)

// ErrUnsupportedEncoding is returned for encoding names x/text does not know.
var ErrUnsupportedEncoding = errors.New("source: unsupported encoding")

// Decode converts raw bytes to UTF-8 text. "" and "utf-8" require valid
// UTF-8 and strip a leading byte order mark. "auto" falls back to Shift_JIS
// when the input is not UTF-8. Other names are resolved through the WHATWG
// encoding index (shift_jis, euc-jp, windows-1252, ...).
func Decode(b []byte, encoding string) ([]byte, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	switch name {
	case "", "utf-8", "utf8":
		return decodeUTF8(b)
	case "auto":
		if utf8.Valid(b) {
			return decodeUTF8(b)
		}
		name = "shift_jis"
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tabular.ErrNotText, err)
	}
	return out, nil
}

func decodeUTF8(b []byte) ([]byte, error) {
	if !utf8.Valid(b) {
		return nil, tabular.ErrNotText
	}
	out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tabular.ErrNotText, err)
	}
	return out, nil
}
