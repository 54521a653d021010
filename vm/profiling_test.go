package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wudi/harp/opcodes"
)

func TestObserveNilStateIsNoop(t *testing.T) {
	var ps *profileState
	assert.NotPanics(t, func() { ps.observe(0, opcodes.Instruction{Opcode: opcodes.OP_ADD}) })
}

func TestReportEmptyStateSaysNoData(t *testing.T) {
	ps := newProfileState()
	assert.Equal(t, "(no profiling data)", ps.Report(5))
}

func TestHotSpotsOrderedByCountThenOffset(t *testing.T) {
	ps := newProfileState()
	ps.observe(0, opcodes.Instruction{Opcode: opcodes.OP_ADD})
	ps.observe(1, opcodes.Instruction{Opcode: opcodes.OP_ADD})
	ps.observe(1, opcodes.Instruction{Opcode: opcodes.OP_ADD})
	ps.observe(2, opcodes.Instruction{Opcode: opcodes.OP_SUB})

	spots := ps.HotSpots(2)
	assert.Len(t, spots, 2)
	assert.Equal(t, 1, spots[0].Offset)
	assert.Equal(t, 2, spots[0].Count)
}

func TestReportIncludesTotalAndHotOffsets(t *testing.T) {
	ps := newProfileState()
	ps.observe(0, opcodes.Instruction{Opcode: opcodes.OP_ADD})
	ps.observe(0, opcodes.Instruction{Opcode: opcodes.OP_ADD})

	out := ps.Report(3)
	assert.Contains(t, out, "total instructions dispatched")
	assert.Contains(t, out, "ADD")
	assert.Contains(t, out, "hot offsets")
}

func TestSlowOpCountsTrackedBySubID(t *testing.T) {
	ps := newProfileState()
	inst := opcodes.Instruction{Opcode: opcodes.OP_SLOW_OP, OpType2: byte(slowLocaltime)}
	ps.observe(0, inst)
	ps.mu.Lock()
	count := ps.slowOpCounts[opcodes.DecodeSubID(inst.OpType2)]
	ps.mu.Unlock()
	assert.Equal(t, 1, count)
}
