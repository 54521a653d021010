package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/harp/values"
)

func TestGlobalScalarCreatesUndefOnFirstAccessAndIsStable(t *testing.T) {
	tbl := New()
	a := tbl.GlobalScalar("x")
	assert.True(t, a.IsUndef())

	tbl.SetGlobalScalar("x", values.NewInt(5))
	b := tbl.GlobalScalar("x")
	assert.Same(t, a, b, "GlobalScalar must return the same live cell across calls")
	assert.Equal(t, int64(5), b.ToInt())
}

func TestSetGlobalScalarMutatesInPlaceForExistingAliases(t *testing.T) {
	tbl := New()
	cell := tbl.GlobalScalar("counter")
	tbl.SetGlobalScalar("counter", values.NewInt(1))
	assert.Equal(t, int64(1), cell.ToInt(), "an alias taken before the set must observe the write")
}

func TestRegisterAndLookupCode(t *testing.T) {
	tbl := New()
	_, ok := tbl.LookupCode("main::missing")
	assert.False(t, ok)

	tbl.RegisterCode("main::greet", "a-code-object-stand-in")
	v, ok := tbl.LookupCode("main::greet")
	require.True(t, ok)
	assert.Equal(t, "a-code-object-stand-in", v)
}

func TestMustLookupCodeErrorsOnMiss(t *testing.T) {
	tbl := New()
	_, err := tbl.MustLookupCode("main::nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main::nope")
}

func TestGlobalArrayAndHashStartEmpty(t *testing.T) {
	tbl := New()
	arr := tbl.GlobalArray("@list")
	assert.Equal(t, values.KindArray, arr.Kind)
	assert.Empty(t, arr.Arr.Elems)

	h := tbl.GlobalHash("%map")
	assert.Equal(t, values.KindHash, h.Kind)
}
