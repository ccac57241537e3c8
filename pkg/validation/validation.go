package validation

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/vinodismyname/salesdash/pkg/pagination"
)

var (
	v        *validator.Validate
	vOnce    sync.Once
	periodRe = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])$`)
)

// SourceExtensions lists the local file formats accepted as sources.
var SourceExtensions = []string{".csv", ".tsv", ".txt", ".xlsx"}

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	vOnce.Do(func() {
		v = validator.New()
		// Custom: reporting period in canonical YYYY-MM form
		_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
			return IsPeriod(fl.Field().String())
		})
		// Custom: http(s) URL or a local path with a supported extension
		_ = v.RegisterValidation("source", func(fl validator.FieldLevel) bool {
			return IsSource(fl.Field().String())
		})
		// Custom: export target must be an .xlsx path
		_ = v.RegisterValidation("xlsx_path", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			return s != "" && strings.EqualFold(filepath.Ext(s), ".xlsx")
		})
		// Custom: cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

// IsPeriod reports whether s is a canonical YYYY-MM period key.
func IsPeriod(s string) bool {
	return periodRe.MatchString(strings.TrimSpace(s))
}

// IsSource reports whether s is an http(s) URL or a path with a supported extension.
func IsSource(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	// Single-letter schemes are Windows drive letters, not URLs.
	if u, err := url.Parse(s); err == nil && len(u.Scheme) > 1 {
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	}
	ext := strings.ToLower(filepath.Ext(s))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "required_without":
				if field == "snapshot_id" || field == "snapshotid" {
					return "VALIDATION: snapshot_id is required (or supply cursor)"
				}
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "period":
				return fmt.Sprintf("VALIDATION: %s must be a period like 2024-06", field)
			case "source":
				return fmt.Sprintf("VALIDATION: %s must be an http(s) URL or a .csv/.tsv/.txt/.xlsx path", field)
			case "xlsx_path":
				return "VALIDATION: path must end in .xlsx"
			case "cursor":
				return "CURSOR_INVALID: failed to decode cursor; restart paging"
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			}
			return fmt.Sprintf("VALIDATION: invalid %s", field)
		}
		return "VALIDATION: invalid inputs"
	}
	return ""
}
