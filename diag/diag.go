// Package diag is harp's error taxonomy (spec.md §7): compile-time
// errors, interpreter-detected errors, runtime errors from operators,
// and the die/warn emitters external code calls through (spec.md §6.5).
//
// Grounded on errors/errors.go's typed-error-with-position shape, but
// rebuilt against harp's own Position rather than the teacher file's
// dead import of a sibling module's lexer package.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Position locates a diagnostic in source text.
type Position struct {
	Source string
	Line   int
}

func (p Position) String() string {
	if p.Source == "" {
		return fmt.Sprintf("line %d", p.Line)
	}
	return fmt.Sprintf("%s line %d", p.Source, p.Line)
}

// Kind classifies an Error by the effect taxonomy of spec.md §7, not by
// host Go error type.
type Kind int

const (
	CompileError Kind = iota
	InterpreterError
	RuntimeOperatorError
	PlatformUnavailableError
)

func (k Kind) String() string {
	switch k {
	case CompileError:
		return "compile error"
	case InterpreterError:
		return "interpreter error"
	case RuntimeOperatorError:
		return "runtime error"
	case PlatformUnavailableError:
		return "platform unavailable"
	default:
		return "error"
	}
}

// Error is harp's uniform diagnostic for compile-time and
// interpreter-detected errors. A Perl-level die travels as *Die instead,
// and an error from a native collaborator reaches an eval-catch handler
// as it was returned; the interpreter turns such an error into an Error
// only when it escapes the invocation uncaught.
type Error struct {
	Kind Kind
	Msg  string
	Pos  Position
	PC   int // -1 when not applicable (e.g. compile-time)
	Err  error
}

func (e *Error) Error() string {
	if e.PC >= 0 {
		return fmt.Sprintf("%s at %s, pc=%d: %s", e.Kind, e.Pos, e.PC, e.Msg)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Pos, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NewCompileError(msg string, pos Position) *Error {
	return &Error{Kind: CompileError, Msg: msg, Pos: pos, PC: -1}
}

func NewInterpreterError(msg string, pos Position, pc int) *Error {
	return &Error{Kind: InterpreterError, Msg: msg, Pos: pos, PC: pc}
}

// Die is the Perl-level exception raised by `die`/operator failure; it
// carries the textual message exactly as it would appear in the $@
// equivalent (spec.md §3's eval-catch stack, §7's propagation policy).
type Die struct {
	Message string
	Pos     Position
	PC      int
}

func (d *Die) Error() string { return d.Message }

// CatchMessage renders the error-variable text on catch: the raw
// message the source gave `die`, suffixed with source coordinates
// unless the message already ends in a newline (mirroring Perl's own
// "at FILE line N." suffixing rule).
func (d *Die) CatchMessage() string {
	if len(d.Message) > 0 && d.Message[len(d.Message)-1] == '\n' {
		return d.Message
	}
	return fmt.Sprintf("%s at %s.\n", d.Message, d.Pos)
}

// warnSink is the process-wide warning writer (spec.md §6.5's warn()).
var (
	warnMu   sync.Mutex
	warnDest io.Writer = os.Stderr
	colorize           = isatty.IsTerminal(os.Stderr.Fd())
)

// SetWarnWriter redirects Warn's output; used by tests and by embedders
// that want to capture warnings instead of printing to stderr.
func SetWarnWriter(w io.Writer) {
	warnMu.Lock()
	defer warnMu.Unlock()
	warnDest = w
}

// Warn writes a non-fatal diagnostic, colorized only when the
// destination is a real terminal.
func Warn(message string, pos Position) {
	warnMu.Lock()
	defer warnMu.Unlock()
	line := fmt.Sprintf("%s at %s.\n", message, pos)
	if colorize && warnDest == os.Stderr {
		fmt.Fprintf(warnDest, "\x1b[33m%s\x1b[0m", line)
		return
	}
	fmt.Fprint(warnDest, line)
}
