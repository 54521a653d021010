// Package bytecode defines the immutable artifact the compiler produces
// and the interpreter executes (spec.md §2's "Bytecode container",
// §3's Code object). A Chunk is deliberately passive data; the
// apply(args, context) behavior that makes it indistinguishable from a
// natively-compiled code object lives one layer up, in codeobj.
package bytecode

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/values"
)

// SourceMapEntry records which source token produced an instruction
// range, for error decoration (spec.md §7) and disassembly.
type SourceMapEntry struct {
	FromOffset int
	Line       int
}

// Chunk is the immutable bytecode container of spec.md §3: instruction
// stream, constant pool, string pool, register count, optional
// captured-vector template, and source metadata.
type Chunk struct {
	Name        string // package/sub name, set once on install (spec.md §3 lifecycle)
	SourceName  string
	Instructions []opcodes.Instruction
	Constants   []*values.Value // e.g. nested Chunk templates for closures
	Strings     []string        // deduplicated; index equality == string equality
	stringIndex map[string]int

	RegisterCount int
	CaptureCount  int // >0 marks this chunk a closure template (no owned vector)

	SourceMap []SourceMapEntry

	// BuildID is a content-independent identifier minted once per
	// compiled chunk, used to correlate profiler/hot-spot reports and
	// disassembly dumps across runs (SPEC_FULL.md §3).
	BuildID string
}

// NewChunk allocates an empty chunk ready for the compiler to append to.
func NewChunk(name, sourceName string) *Chunk {
	return &Chunk{
		Name:        name,
		SourceName:  sourceName,
		stringIndex: make(map[string]int),
		BuildID:     uuid.NewString(),
	}
}

// InternString returns the (deduplicated) string-pool index for s,
// appending a new entry only the first time s is seen (spec.md §3:
// "Deduplication is required so that string-index equality corresponds
// to string equality").
func (c *Chunk) InternString(s string) uint32 {
	if idx, ok := c.stringIndex[s]; ok {
		return uint32(idx)
	}
	idx := len(c.Strings)
	c.Strings = append(c.Strings, s)
	c.stringIndex[s] = idx
	return uint32(idx)
}

// AddConstant appends v to the constant pool and returns its index.
// Deduplication is optional per spec.md §3; harp does not dedup
// constants since closures templates (the common constant payload)
// are reference-distinct by construction.
func (c *Chunk) AddConstant(v *values.Value) uint32 {
	c.Constants = append(c.Constants, v)
	return uint32(len(c.Constants) - 1)
}

// Emit appends an instruction and records which source line produced
// it, coalescing consecutive instructions from the same line.
func (c *Chunk) Emit(inst opcodes.Instruction, line int) int {
	offset := len(c.Instructions)
	c.Instructions = append(c.Instructions, inst)
	if len(c.SourceMap) == 0 || c.SourceMap[len(c.SourceMap)-1].Line != line {
		c.SourceMap = append(c.SourceMap, SourceMapEntry{FromOffset: offset, Line: line})
	}
	return offset
}

// LineAt resolves the source line responsible for instruction offset,
// used to decorate interpreter errors with (source, line) per spec.md §7.
func (c *Chunk) LineAt(offset int) int {
	line := 0
	for _, e := range c.SourceMap {
		if e.FromOffset > offset {
			break
		}
		line = e.Line
	}
	return line
}

// Patch overwrites the jump-target operand of a previously emitted
// instruction; used by the compiler to back-patch forward jumps once
// the target offset is known.
func (c *Chunk) Patch(offset int, target uint32) {
	c.Instructions[offset].Op1 = target
}

// PatchResult overwrites the Result operand (used for GOTO_IF_* whose
// target lives in Result rather than Op1, matching the compiler's
// convention — see compileIf in compiler/stmt.go).
func (c *Chunk) PatchResult(offset int, target uint32) {
	c.Instructions[offset].Result = target
}

// Disassemble renders a loss-less, human-readable listing: one line per
// instruction, offset first, so that two independently-produced chunks
// with the same semantics produce identical instruction lines up to pool
// ordering (spec.md §8's "Encoding round trip" property). The header
// line differs between such chunks, since it carries each chunk's own
// BuildID.
func (c *Chunk) Disassemble() string {
	var b strings.Builder
	fmt.Fprintf(&b, "; %s (%s) regs=%d captures=%d build=%s\n",
		c.Name, c.SourceName, c.RegisterCount, c.CaptureCount, c.BuildID)
	for i, inst := range c.Instructions {
		fmt.Fprintf(&b, "%5d  %s\n", i, inst.String())
	}
	if len(c.Strings) > 0 {
		fmt.Fprintf(&b, "; strings: %v\n", c.Strings)
	}
	return b.String()
}
