package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/salesdash/pkg/pagination"
)

type probe struct {
	Period string `validate:"omitempty,period"`
	Source string `validate:"omitempty,source"`
	Out    string `validate:"omitempty,xlsx_path"`
	Cursor string `validate:"omitempty,cursor"`
	Limit  int    `validate:"omitempty,min=1,max=500"`
	Name   string `validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	tok, err := pagination.EncodeCursor(pagination.Cursor{Sid: "s", Sr: "area_sales", Ps: 5})
	require.NoError(t, err)

	cases := []struct {
		name string
		in   probe
		want string
	}{
		{"ok", probe{Name: "x", Period: "2024-06", Source: "https://example.com/a.csv", Out: "/tmp/a.xlsx", Cursor: tok, Limit: 10}, ""},
		{"missing name", probe{}, "VALIDATION: name is required"},
		{"bad period", probe{Name: "x", Period: "2024-6"}, "VALIDATION: period must be a period like 2024-06"},
		{"bad source", probe{Name: "x", Source: "ftp://host/a.csv"}, "VALIDATION: source must be an http(s) URL or a .csv/.tsv/.txt/.xlsx path"},
		{"bad out", probe{Name: "x", Out: "report.csv"}, "VALIDATION: path must end in .xlsx"},
		{"bad cursor", probe{Name: "x", Cursor: "!!"}, "CURSOR_INVALID: failed to decode cursor; restart paging"},
		{"limit", probe{Name: "x", Limit: 900}, "VALIDATION: limit must satisfy max=500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ValidateStruct(tc.in))
		})
	}
}

func TestIsSource(t *testing.T) {
	require.True(t, IsSource("./data/sales_summary.csv"))
	require.True(t, IsSource("/srv/targets.XLSX"))
	require.True(t, IsSource("http://localhost:8000/sales.csv"))
	require.False(t, IsSource("https://"))
	require.False(t, IsSource("notes.md"))
	require.False(t, IsSource(""))
}
