package bytecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/values"
)

func TestInternStringDeduplicates(t *testing.T) {
	c := NewChunk("main", "test")
	a := c.InternString("foo")
	b := c.InternString("bar")
	again := c.InternString("foo")

	assert.Equal(t, a, again)
	assert.NotEqual(t, a, b)
	assert.Equal(t, []string{"foo", "bar"}, c.Strings)
}

func TestAddConstantNotDeduplicated(t *testing.T) {
	c := NewChunk("main", "test")
	i1 := c.AddConstant(values.NewInt(1))
	i2 := c.AddConstant(values.NewInt(1))
	assert.NotEqual(t, i1, i2, "constants are reference-distinct, not deduplicated")
	assert.Len(t, c.Constants, 2)
}

func TestEmitAndLineAt(t *testing.T) {
	c := NewChunk("main", "test")
	c.Emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_INT}, 1)
	c.Emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_INT}, 1)
	off := c.Emit(opcodes.Instruction{Opcode: opcodes.OP_ADD}, 2)

	assert.Equal(t, 1, c.LineAt(0))
	assert.Equal(t, 1, c.LineAt(1))
	assert.Equal(t, 2, c.LineAt(off))
}

func TestPatchAndPatchResult(t *testing.T) {
	c := NewChunk("main", "test")
	goto_ := c.Emit(opcodes.Instruction{Opcode: opcodes.OP_GOTO}, 1)
	c.Patch(goto_, 42)
	assert.Equal(t, uint32(42), c.Instructions[goto_].Op1)

	branch := c.Emit(opcodes.Instruction{Opcode: opcodes.OP_GOTO_IF_FALSE}, 2)
	c.PatchResult(branch, 7)
	assert.Equal(t, uint32(7), c.Instructions[branch].Result)
}

func TestDisassembleIncludesNameRegsAndStrings(t *testing.T) {
	c := NewChunk("greet", "test.pl")
	c.RegisterCount = 4
	c.InternString("hello")
	c.Emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_STRING, OpType1: byte(opcodes.IS_STR) << 4, Op1: 0, Result: 3}, 1)

	out := c.Disassemble()
	require.NotEmpty(t, out)
	assert.True(t, strings.Contains(out, "greet"))
	assert.True(t, strings.Contains(out, "test.pl"))
	assert.True(t, strings.Contains(out, "regs=4"))
	assert.True(t, strings.Contains(out, "hello"))
}

func TestBuildIDMintedOncePerChunk(t *testing.T) {
	a := NewChunk("main", "test")
	b := NewChunk("main", "test")
	assert.NotEmpty(t, a.BuildID)
	assert.NotEqual(t, a.BuildID, b.BuildID)
}
