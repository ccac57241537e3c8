package sales

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

var numberNoise = strings.NewReplacer(",", "", "¥", "", "￥", "", "円", "", "$", "", " ", "")

// ParseNumber cleans thousands separators and currency marks before
// converting. Empty input is zero. ok is false when s is not a finite number.
func ParseNumber(s string) (v float64, ok bool) {
	s = numberNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, true
	}
	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var (
	periodDelimited = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})(?:[-/.]\d{1,2})?(?:[ T].*)?$`)
	periodKanji     = regexp.MustCompile(`^(\d{4})年\s*(\d{1,2})月(?:\s*\d{1,2}日)?$`)
	periodCompact   = regexp.MustCompile(`^(\d{4})(\d{2})$`)
)

// NormalizePeriod rewrites recognizable year/month values (2024-6, 2024/06,
// 2024-06-01, 2024年6月, 202406) to YYYY-MM. Anything else is returned
// trimmed but otherwise unchanged.
func NormalizePeriod(s string) string {
	s = strings.TrimSpace(s)
	for _, re := range []*regexp.Regexp{periodDelimited, periodKanji, periodCompact} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		month, err := strconv.Atoi(m[2])
		if err != nil || month < 1 || month > 12 {
			return s
		}
		return fmt.Sprintf("%s-%02d", m[1], month)
	}
	return s
}
