package vm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/wudi/harp/opcodes"
)

// HotSpot describes an instruction offset executed frequently, for the
// hot-spot profiler report (SPEC_FULL.md §3).
type HotSpot struct {
	Offset int
	Count  int
}

// profileState belongs to one Interpreter and is shared by every Apply
// run on it, the way the teacher's VirtualMachine keeps one
// profileState for the whole run rather than per call frame. Nested
// calls that go through codeobj.Instance.Apply run on the package's
// default Interpreter, so they are counted in its profile, not in the
// profile of an Interpreter made by New.
type profileState struct {
	mu sync.Mutex

	offsetCounts map[int]int
	opcodeCounts map[opcodes.Opcode]int
	slowOpCounts map[byte]int
}

func newProfileState() *profileState {
	return &profileState{
		offsetCounts: make(map[int]int),
		opcodeCounts: make(map[opcodes.Opcode]int),
		slowOpCounts: make(map[byte]int),
	}
}

func (ps *profileState) observe(offset int, inst opcodes.Instruction) {
	if ps == nil {
		return
	}
	ps.mu.Lock()
	ps.offsetCounts[offset]++
	ps.opcodeCounts[inst.Opcode]++
	if inst.Opcode == opcodes.OP_SLOW_OP {
		ps.slowOpCounts[opcodes.DecodeSubID(inst.OpType2)]++
	}
	ps.mu.Unlock()
}

// HotSpots returns the n most frequently executed instruction offsets,
// ties broken by offset. n <= 0 returns every offset seen.
func (ps *profileState) HotSpots(n int) []HotSpot {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	spots := make([]HotSpot, 0, len(ps.offsetCounts))
	for off, count := range ps.offsetCounts {
		spots = append(spots, HotSpot{Offset: off, Count: count})
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].Count == spots[j].Count {
			return spots[i].Offset < spots[j].Offset
		}
		return spots[i].Count > spots[j].Count
	})
	if n <= 0 || n >= len(spots) {
		return spots
	}
	return spots[:n]
}

// Report renders a human-readable summary, using go-humanize to keep
// large counters (millions of dispatched instructions in a hot loop)
// readable the way the teacher's own profiler render does with plain
// fmt — humanize.Comma is the one piece that library adds over it.
func (ps *profileState) Report(top int) string {
	ps.mu.Lock()
	total := 0
	for _, c := range ps.offsetCounts {
		total += c
	}
	ps.mu.Unlock()

	if total == 0 {
		return "(no profiling data)"
	}

	var b []byte
	b = append(b, fmt.Sprintf("total instructions dispatched: %s\n", humanize.Comma(int64(total)))...)
	for _, op := range sortedOpcodes(ps) {
		b = append(b, fmt.Sprintf("  %-22s %s\n", op.String(), humanize.Comma(int64(ps.opcodeCounts[op])))...)
	}
	b = append(b, "hot offsets:\n"...)
	for _, hs := range ps.HotSpots(top) {
		b = append(b, fmt.Sprintf("  offset %-6d %s hits\n", hs.Offset, humanize.Comma(int64(hs.Count)))...)
	}
	return string(b)
}

func sortedOpcodes(ps *profileState) []opcodes.Opcode {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ops := make([]opcodes.Opcode, 0, len(ps.opcodeCounts))
	for op := range ps.opcodeCounts {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ps.opcodeCounts[ops[i]] > ps.opcodeCounts[ops[j]]
	})
	return ops
}
