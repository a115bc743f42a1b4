// File: internal/localsock/endpoint_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/internal/localsock"
)

func TestNewEndpoint_Invalid(t *testing.T) {
	for _, name := range []string{"", "a/b", `a\b`, "a\x00b", strings.Repeat("x", 101)} {
		_, err := localsock.NewEndpoint(name)
		assert.ErrorIs(t, err, api.ErrInvalidArgument, "name %q", name)
	}
}

func TestEndpoint_AddrRoundTrip(t *testing.T) {
	ep := localsock.MustEndpoint("interprocess-drop-panic")
	assert.Equal(t, "interprocess-drop-panic", ep.Name())
	assert.False(t, ep.IsZero())
	assert.True(t, localsock.Endpoint{}.IsZero())

	parsed, err := localsock.ParseAddr(ep.Addr())
	require.NoError(t, err)
	assert.Equal(t, ep, parsed)
	assert.Equal(t, ep.Addr(), ep.String())
}

func TestParseAddr_SpellingsOfOneName(t *testing.T) {
	want := localsock.MustEndpoint("interprocess-drop-panic")
	for _, addr := range []string{
		"interprocess-drop-panic",
		"@interprocess-drop-panic",
		`\\.\pipe\interprocess-drop-panic`,
		filepath.Join(filepath.Clean(os.TempDir()), "interprocess-drop-panic.sock"),
	} {
		got, err := localsock.ParseAddr(addr)
		require.NoError(t, err, addr)
		assert.Equal(t, want, got, addr)
	}
}

func TestParseAddr_ForeignDirectory(t *testing.T) {
	_, err := localsock.ParseAddr(filepath.Join(os.TempDir(), "nested", "x.sock"))
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
