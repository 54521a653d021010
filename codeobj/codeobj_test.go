package codeobj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/harp/bytecode"
	"github.com/wudi/harp/values"
)

func TestNewClosureCopiesCapturedVectorByValue(t *testing.T) {
	template := bytecode.NewChunk("adder", "test")
	template.CaptureCount = 1
	outer := []*values.Value{values.NewInt(10)}

	closure := NewClosure(template, outer)
	require.True(t, closure.IsClosure())

	// Mutating the outer slice after closure creation must not affect
	// the already-materialized captured vector (spec.md §4.2).
	outer[0] = values.NewInt(999)
	assert.Equal(t, int64(10), closure.Captured[0].ToInt())
}

func TestTwoClosuresShareTemplateButOwnCaptures(t *testing.T) {
	template := bytecode.NewChunk("adder", "test")
	template.CaptureCount = 1

	a := NewClosure(template, []*values.Value{values.NewInt(1)})
	b := NewClosure(template, []*values.Value{values.NewInt(2)})

	assert.Same(t, a.Chunk, b.Chunk, "closures from the same template share the chunk")
	assert.Equal(t, int64(1), a.Captured[0].ToInt())
	assert.Equal(t, int64(2), b.Captured[0].ToInt())

	a.Captured[0] = values.NewInt(100)
	assert.Equal(t, int64(2), b.Captured[0].ToInt(), "mutating one closure's captured vector must not affect the other")
}

func TestNewInterpretedIsNotAClosure(t *testing.T) {
	chunk := bytecode.NewChunk("main", "test")
	inst := NewInterpreted(chunk)
	assert.False(t, inst.IsClosure())
}

func TestApplyDispatchesToNativeFunc(t *testing.T) {
	called := false
	inst := NewNative("probe", func(args []*values.Value, ctx Context) ([]*values.Value, error) {
		called = true
		return []*values.Value{values.NewInt(int64(len(args)))}, nil
	})

	out, err := inst.Apply([]*values.Value{values.NewInt(1), values.NewInt(2)}, CtxScalar)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, int64(2), out[0].ToInt())
}

func TestApplyWithoutInstalledInterpreterErrors(t *testing.T) {
	saved := interpret
	interpret = nil
	defer func() { interpret = saved }()

	chunk := bytecode.NewChunk("main", "test")
	inst := NewInterpreted(chunk)
	_, err := inst.Apply(nil, CtxVoid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no interpreter installed")
}
