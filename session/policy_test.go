package session

import (
	"testing"

	"github.com/ecrterm/ecrterm/wire"
	"github.com/stretchr/testify/require"
)

func TestValidateManualInput(t *testing.T) {
	require.True(t, validateManualInput(wire.ResultManualAuthCode, "1234"))
	require.True(t, validateManualInput(wire.ResultManualAuthCode, "123456"))
	require.False(t, validateManualInput(wire.ResultManualAuthCode, "123"))
	require.False(t, validateManualInput(wire.ResultManualAuthCode, "1234567"))
	require.False(t, validateManualInput(wire.ResultManualAuthCode, "12a4"))

	require.True(t, validateManualInput(wire.ResultManualLastFour, "4242"))
	require.False(t, validateManualInput(wire.ResultManualLastFour, "424"))
	require.False(t, validateManualInput(wire.ResultManualLastFour, "42424"))

	require.False(t, validateManualInput("9999", "1234"))
}

func TestDefaultPolicyDefaults(t *testing.T) {
	p := DefaultPolicy()
	require.False(t, p.AllowManualAuthorization(wire.ResultManualAuthCode))
	require.True(t, p.AllowUserPrompt("2004"))
	v, accepted := p.RequestManualInput(wire.ResultManualAuthCode, "")
	require.Empty(t, v)
	require.False(t, accepted)
	require.True(t, p.RequestConfirmation("2004", ""))
	p.PostProcessUserPrompt("2004", "accepted")
}

func TestFillDefaultsLeavesOverridesIntact(t *testing.T) {
	called := false
	p := Policy{
		AllowUserPrompt: func(string) bool { called = true; return false },
	}
	filled := p.fillDefaults()
	require.False(t, filled.AllowUserPrompt("2004"))
	require.True(t, called)

	// untouched fields fall back to DefaultPolicy's.
	require.False(t, filled.AllowManualAuthorization(wire.ResultManualAuthCode))
	require.NotPanics(t, func() { filled.PostProcessUserPrompt("x", "y") })
}
