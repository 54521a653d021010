// Builtins installs the small set of named natively-compiled code
// objects CALL_BUILTIN reaches for: sprintf, regex match/replace,
// range, and rand (require is the plain Require function, not a
// registered code object). Registered into
// Globals under package "main" the same way register_as_named_sub
// would install an interpreted sub, so CALL_SUB/CALL_METHOD cannot
// distinguish a builtin from user code at the call boundary (spec.md
// §4.5).
package runtime

import (
	"fmt"
	"math/rand"
	"regexp"
	"sync"

	"github.com/wudi/harp/codeobj"
	"github.com/wudi/harp/values"
)

var bootstrapOnce sync.Once

func installBuiltins() {
	Globals.RegisterCode("main::sprintf", codeobj.NewNative("sprintf", builtinSprintf))
	Globals.RegisterCode("main::range", codeobj.NewNative("range", builtinRange))
	Globals.RegisterCode("main::rand", codeobj.NewNative("rand", builtinRand))
	Globals.RegisterCode("main::match", codeobj.NewNative("match", builtinMatch))
	Globals.RegisterCode("main::replace", codeobj.NewNative("replace", builtinReplace))
}

func builtinSprintf(args []*values.Value, _ codeobj.Context) ([]*values.Value, error) {
	if len(args) == 0 {
		return []*values.Value{values.NewString("")}, nil
	}
	format := perlToGoFormat(args[0].ToString())
	rest := make([]interface{}, len(args)-1)
	for i, v := range args[1:] {
		if v.IsNumeric() {
			rest[i] = v.ToFloat()
		} else {
			rest[i] = v.ToString()
		}
	}
	return []*values.Value{values.NewString(fmt.Sprintf(format, rest...))}, nil
}

// perlToGoFormat is intentionally narrow: it passes %s/%f specifiers
// through as Go's fmt already understands them (Perl's sprintf and Go's
// fmt share the printf lineage), and rewrites only %d: that specifier is
// fed a float64 argument above, so it becomes %.0f to print the float
// without a fractional part.
func perlToGoFormat(f string) string {
	out := make([]byte, 0, len(f))
	for i := 0; i < len(f); i++ {
		if f[i] == '%' && i+1 < len(f) && f[i+1] == 'd' {
			out = append(out, '%', '.', '0', 'f')
			i++
			continue
		}
		out = append(out, f[i])
	}
	return string(out)
}

func builtinRange(args []*values.Value, _ codeobj.Context) ([]*values.Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("range requires two arguments")
	}
	lo, hi := args[0].ToInt(), args[1].ToInt()
	if hi < lo {
		return nil, nil
	}
	out := make([]*values.Value, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, values.NewInt(i))
	}
	return out, nil
}

func builtinRand(args []*values.Value, _ codeobj.Context) ([]*values.Value, error) {
	limit := 1.0
	if len(args) > 0 {
		limit = args[0].ToFloat()
	}
	return []*values.Value{values.NewFloat(rand.Float64() * limit)}, nil
}

// --- regex engine (spec.md §6 item 8) ---

func builtinMatch(args []*values.Value, _ codeobj.Context) ([]*values.Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("match requires (subject, pattern)")
	}
	re, err := regexp.Compile(args[1].ToString())
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	groups := re.FindStringSubmatch(args[0].ToString())
	if groups == nil {
		return []*values.Value{values.NewString("")}, nil
	}
	out := make([]*values.Value, len(groups))
	for i, g := range groups {
		out[i] = values.NewString(g)
	}
	return out, nil
}

func builtinReplace(args []*values.Value, _ codeobj.Context) ([]*values.Value, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("replace requires (subject, pattern, replacement)")
	}
	re, err := regexp.Compile(args[1].ToString())
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return []*values.Value{values.NewString(re.ReplaceAllString(args[0].ToString(), args[2].ToString()))}, nil
}

// Require resolves a module/version constraint (spec.md §6 item 6). The
// core's contract is narrow: succeed for a bare version-number require
// (Perl's `require 5.010`-style constraint), otherwise report not-found
// since module search paths are entirely an external-runtime concern.
func Require(v *values.Value) (*values.Value, error) {
	if v.IsNumeric() {
		return values.NewInt(1), nil
	}
	return nil, fmt.Errorf("can't locate %s in @INC", v.ToString())
}
