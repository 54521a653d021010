// Package values implements the narrow runtime-value interface spec.md §6
// treats as an external collaborator: a dynamically-typed Perl scalar,
// array, hash, code reference and glob, plus the control-flow marker
// kind the interpreter threads through return values (spec.md §3).
//
// This is deliberately thin: the full operator library (arithmetic,
// string, compare, regex) lives in package runtime, which is the
// collaborator the interpreter actually calls through (spec.md §6.1).
package values

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the tag of the scalar/container union.
type Kind byte

const (
	KindUndef Kind = iota
	KindInt
	KindFloat
	KindString
	KindRef
	KindArray
	KindHash
	KindCode
	KindGlob
	KindControlFlow
)

// Value is a Perl-flavored dynamic scalar, or a container/coderef value
// held in a register. Scalars are boxed in *Value so that LOAD_INT and
// friends can hand out a cell that is safe to mutate in place
// (spec.md §4.3's "allocate, don't cache" default).
type Value struct {
	Kind Kind
	I    int64
	F    float64
	S    string
	Ref  *Value      // KindRef: the referenced cell
	Arr  *Array       // KindArray
	Hash *Hash        // KindHash
	Code interface{}  // KindCode: a *codeobj.Instance (avoids import cycle)
	Glob *Glob        // KindGlob
	CF   *ControlFlow // KindControlFlow
}

// Array is a Perl array: a dense, order-preserving, 0-indexed list of
// cells. Elements are *Value so that aliasing ($a[0] \$x) is possible.
type Array struct {
	Elems []*Value
}

// Hash is a Perl hash: insertion-ordered keys over mutable cells.
type Hash struct {
	keys   []string
	values map[string]*Value
}

// Glob stands in for a filehandle/typeglob; harp only needs enough of
// it to make OPEN/PRINT/READLINE concrete (spec.md §6.7).
type Glob struct {
	Name   string
	Writer interface{} // io.Writer, stored as interface{} to avoid import here
	Reader interface{} // io.Reader
}

// ControlFlowKind enumerates the non-local transfer markers of spec.md §3.
type ControlFlowKind byte

const (
	CFLast ControlFlowKind = iota
	CFNext
	CFRedo
	CFGoto
	CFTailCall
)

// ControlFlow is the distinguished runtime value signalling non-local
// control transfer. It is carried polymorphically in place of a normal
// value list (spec.md §3, §4.3).
type ControlFlow struct {
	Kind   ControlFlowKind
	Label  string
	Source string
	Line   int
}

func Undef() *Value                { return &Value{Kind: KindUndef} }
func NewInt(i int64) *Value        { return &Value{Kind: KindInt, I: i} }
func NewFloat(f float64) *Value    { return &Value{Kind: KindFloat, F: f} }
func NewString(s string) *Value    { return &Value{Kind: KindString, S: s} }
func NewRef(v *Value) *Value       { return &Value{Kind: KindRef, Ref: v} }
func NewArray(elems []*Value) *Value {
	if elems == nil {
		elems = []*Value{}
	}
	return &Value{Kind: KindArray, Arr: &Array{Elems: elems}}
}
func NewHash() *Value {
	return &Value{Kind: KindHash, Hash: NewHashContainer()}
}
func NewHashContainer() *Hash {
	return &Hash{values: make(map[string]*Value)}
}
func NewCode(code interface{}) *Value { return &Value{Kind: KindCode, Code: code} }
func NewControlFlow(cf *ControlFlow) *Value {
	return &Value{Kind: KindControlFlow, CF: cf}
}

func (v *Value) IsUndef() bool { return v == nil || v.Kind == KindUndef }

// IsControlFlow reports whether v is a non-local-transfer marker rather
// than a normal value — the check every call site and every opcode
// that reads a "normal" register value must perform (spec.md §4.3).
func (v *Value) IsControlFlow() bool { return v != nil && v.Kind == KindControlFlow }

// Truthy implements Perl truthiness: undef, 0, "0", and "" are false;
// everything else (including "0.0" and "00") is true.
func (v *Value) Truthy() bool {
	if v.IsUndef() {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindString:
		return v.S != "" && v.S != "0"
	case KindArray:
		return len(v.Arr.Elems) > 0
	case KindHash:
		return v.Hash.Len() > 0
	default:
		return true
	}
}

// ToFloat coerces a scalar to a float64 the way Perl's numeric context
// does: leading numeric prefix, otherwise 0.
func (v *Value) ToFloat() float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.I)
	case KindFloat:
		return v.F
	case KindString:
		return parseLeadingFloat(v.S)
	case KindUndef:
		return 0
	case KindRef:
		return 1 // refs are numerically truthy addresses; exact value unspecified
	default:
		return 0
	}
}

// ToInt coerces to an int64 via ToFloat's numeric-prefix rule.
func (v *Value) ToInt() int64 {
	if v.Kind == KindInt {
		return v.I
	}
	return int64(v.ToFloat())
}

// ToString coerces to Perl's string context.
func (v *Value) ToString() string {
	switch v.Kind {
	case KindUndef:
		return ""
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return formatPerlFloat(v.F)
	case KindString:
		return v.S
	case KindRef:
		return fmt.Sprintf("REF(%p)", v.Ref)
	case KindArray:
		return fmt.Sprintf("ARRAY(%p)", v)
	case KindHash:
		return fmt.Sprintf("HASH(%p)", v)
	case KindCode:
		return fmt.Sprintf("CODE(%p)", v)
	case KindGlob:
		return fmt.Sprintf("GLOB(%s)", v.Glob.Name)
	default:
		return ""
	}
}

// IsNumeric reports whether the scalar looks numeric (used by
// sprintf's argument conversion and by Require).
func (v *Value) IsNumeric() bool {
	switch v.Kind {
	case KindInt, KindFloat:
		return true
	case KindString:
		_, err := strconv.ParseFloat(strings.TrimSpace(v.S), 64)
		return err == nil
	default:
		return false
	}
}

func parseLeadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit, seenDot, seenExp := false, false, false
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case (c == '+' || c == '-') && end == 0:
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			goto done
		}
		end++
	}
done:
	if !seenDigit {
		return 0
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}

func formatPerlFloat(f float64) string {
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

