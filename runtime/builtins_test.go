package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/harp/codeobj"
	"github.com/wudi/harp/values"
)

func TestBootstrapRegistersBuiltinsOnceAndIsIdempotent(t *testing.T) {
	require.NoError(t, Bootstrap())
	require.NoError(t, Bootstrap())

	_, ok := Globals.LookupCode("main::sprintf")
	assert.True(t, ok)
	_, ok = Globals.LookupCode("main::range")
	assert.True(t, ok)
}

func TestBuiltinSprintfFormatsStringsAndInts(t *testing.T) {
	out, err := builtinSprintf([]*values.Value{values.NewString("%s is %d years old"), values.NewString("harp"), values.NewInt(5)}, codeobj.CtxScalar)
	require.NoError(t, err)
	assert.Equal(t, "harp is 5 years old", out[0].ToString())
}

func TestBuiltinRangeProducesInclusiveAscendingList(t *testing.T) {
	out, err := builtinRange([]*values.Value{values.NewInt(1), values.NewInt(4)}, codeobj.CtxList)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, int64(1), out[0].ToInt())
	assert.Equal(t, int64(4), out[3].ToInt())
}

func TestBuiltinRangeDescendingIsEmpty(t *testing.T) {
	out, err := builtinRange([]*values.Value{values.NewInt(5), values.NewInt(1)}, codeobj.CtxList)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBuiltinMatchReturnsSubmatches(t *testing.T) {
	out, err := builtinMatch([]*values.Value{values.NewString("harp-vm"), values.NewString(`(\w+)-(\w+)`)}, codeobj.CtxList)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "harp", out[1].ToString())
	assert.Equal(t, "vm", out[2].ToString())
}

func TestBuiltinMatchNoMatchReturnsEmptyString(t *testing.T) {
	out, err := builtinMatch([]*values.Value{values.NewString("abc"), values.NewString(`\d+`)}, codeobj.CtxScalar)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "", out[0].ToString())
}

func TestBuiltinReplaceSubstitutesAllMatches(t *testing.T) {
	out, err := builtinReplace([]*values.Value{values.NewString("a1b2c3"), values.NewString(`\d`), values.NewString("_")}, codeobj.CtxScalar)
	require.NoError(t, err)
	assert.Equal(t, "a_b_c_", out[0].ToString())
}

func TestRequireAcceptsVersionNumberOnly(t *testing.T) {
	v, err := Require(values.NewFloat(5.010))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInt())

	_, err = Require(values.NewString("Some::Module"))
	require.Error(t, err)
}
