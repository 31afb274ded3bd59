package ecrerr_test

import (
	"errors"
	"testing"

	"github.com/ecrterm/ecrterm/ecrerr"
	"github.com/stretchr/testify/require"
)

var testType = ecrerr.NewErrorType("ecrerr_test.Err")
var codeA = testType.Code("CodeA")
var codeB = testType.CodeWithDefault("CodeB", errors.New("native default"))

func TestCodeIdentity(t *testing.T) {
	a := codeA.New("boom", nil)
	require.True(t, codeA.Is(a))
	require.False(t, codeB.Is(a))
	require.Equal(t, codeA, ecrerr.Code(a))
}

func TestDefaultWraps(t *testing.T) {
	b := codeB.Default()
	require.True(t, codeB.Is(b))
	require.Contains(t, b.Message(), "native default")
}

func TestNativeRoundTrip(t *testing.T) {
	a := codeA.New("context", nil)
	native := a.Native()
	require.Error(t, native)
	require.Equal(t, ecrerr.E(native), a)
}

func TestMessageChaining(t *testing.T) {
	inner := ecrerr.New("low level failure")
	outer := codeA.New("high level context", inner)
	require.Contains(t, outer.Message(), "high level context")
	require.Contains(t, outer.Message(), "low level failure")
}
