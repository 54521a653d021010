package opcodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeOpTypesRoundTrip(t *testing.T) {
	b1, b2 := EncodeOpTypes(IS_REG, IS_CONST, IS_STR)
	assert.Equal(t, IS_REG, DecodeOpType1(b1))
	assert.Equal(t, IS_CONST, DecodeOpType2(b1))
	assert.Equal(t, IS_STR, DecodeResultType(b2))
}

func TestDecodeSubIDMasksLowNibble(t *testing.T) {
	// Result-type nibble in the high bits must never leak into the sub-id.
	packed := byte(IS_STR)<<4 | 0x05
	assert.Equal(t, byte(5), DecodeSubID(packed))

	packed2 := byte(IS_IMM)<<4 | 0x0F
	assert.Equal(t, byte(0x0F), DecodeSubID(packed2))
}

func TestOpTypeStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "REG", IS_REG.String())
	assert.Equal(t, "JUMP", IS_JUMP.String())
	assert.Equal(t, "UNKNOWN", OpType(255).String())
}

func TestInstructionStringIncludesOperands(t *testing.T) {
	op1, op2 := EncodeOpTypes(IS_REG, IS_REG, IS_REG)
	inst := Instruction{Opcode: OP_ADD, OpType1: op1, OpType2: op2, Op1: 1, Op2: 2, Result: 3}
	s := inst.String()
	assert.Contains(t, s, "ADD")
	assert.Contains(t, s, "REG:1")
	assert.Contains(t, s, "REG:2")
	assert.Contains(t, s, "REG:3")
}

// TestOpcodeNamesCoverDenseGroups spot-checks that representative
// opcodes from each contiguous group (spec.md §4.1) resolve to a name
// rather than falling through to an "OP(<n>)" fallback, guarding against
// the dense numbering drifting out of sync with opcodeNames.
func TestOpcodeNamesCoverDenseGroups(t *testing.T) {
	for _, op := range []Opcode{
		OP_NOP, OP_GOTO, OP_MOVE, OP_LOAD_GLOBAL_SCALAR, OP_ADD,
		OP_CALL_SUB, OP_SLOW_OP,
	} {
		name := op.String()
		assert.NotContains(t, name, "OP(", "opcode %d missing from opcodeNames", op)
	}
}
