package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthyMatchesPerlSemantics(t *testing.T) {
	falsy := []*Value{Undef(), NewInt(0), NewFloat(0), NewString(""), NewString("0")}
	for _, v := range falsy {
		assert.False(t, v.Truthy(), "%v should be falsy", v)
	}

	truthy := []*Value{NewInt(1), NewInt(-1), NewString("0.0"), NewString("00"), NewString("a"), NewArray([]*Value{NewInt(1)})}
	for _, v := range truthy {
		assert.True(t, v.Truthy(), "%v should be truthy", v)
	}
}

func TestToIntCoercesLeadingNumericPrefix(t *testing.T) {
	assert.Equal(t, int64(42), NewString("42abc").ToInt())
	assert.Equal(t, int64(0), NewString("abc").ToInt())
	assert.Equal(t, int64(-3), NewString("-3.9").ToInt())
}

func TestToStringFormatsByKind(t *testing.T) {
	assert.Equal(t, "", Undef().ToString())
	assert.Equal(t, "42", NewInt(42).ToString())
	assert.Equal(t, "3.5", NewFloat(3.5).ToString())
	assert.Equal(t, "3", NewFloat(3.0).ToString())
	assert.Equal(t, "hi", NewString("hi").ToString())
}

func TestIsControlFlowOnlyTrueForControlFlowKind(t *testing.T) {
	assert.False(t, NewInt(1).IsControlFlow())
	cf := NewControlFlow(&ControlFlow{Kind: CFLast})
	assert.True(t, cf.IsControlFlow())
}

func TestIsNumericDetectsNumericStrings(t *testing.T) {
	assert.True(t, NewString("3.14").IsNumeric())
	assert.True(t, NewInt(1).IsNumeric())
	assert.False(t, NewString("abc").IsNumeric())
}
