package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAndUserAgent(t *testing.T) {
	Set("")
	require.NotEmpty(t, Version())

	Set("v1.2.3")
	require.True(t, strings.HasPrefix(UserAgent(), "salesdash/"))
}
