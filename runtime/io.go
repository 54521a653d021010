// I/O primitives (spec.md §6 item 7): print/say/select/open/readline
// over values.Glob filehandles. Kept deliberately thin — a single
// process-wide "selected" filehandle plus stdin/stdout/stderr globs,
// enough to make the PRINT/SAY/SELECT/OPEN/READLINE opcodes concrete.
package runtime

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/wudi/harp/diag"
	"github.com/wudi/harp/values"
)

var (
	ioMu     sync.Mutex
	stdout   = &values.Glob{Name: "STDOUT", Writer: io.Writer(os.Stdout)}
	stderr   = &values.Glob{Name: "STDERR", Writer: io.Writer(os.Stderr)}
	stdin    = &values.Glob{Name: "STDIN", Reader: bufio.NewReader(os.Stdin)}
	selected = stdout
)

func StdoutGlob() *values.Value { return &values.Value{Kind: values.KindGlob, Glob: stdout} }
func StderrGlob() *values.Value { return &values.Value{Kind: values.KindGlob, Glob: stderr} }
func StdinGlob() *values.Value  { return &values.Value{Kind: values.KindGlob, Glob: stdin} }

func resolveGlob(fh *values.Value) *values.Glob {
	if fh == nil || fh.IsUndef() {
		ioMu.Lock()
		defer ioMu.Unlock()
		return selected
	}
	if fh.Kind == values.KindGlob {
		return fh.Glob
	}
	ioMu.Lock()
	defer ioMu.Unlock()
	return selected
}

// Print writes list to fh with no trailing record separator, matching
// Perl's print() (spec.md §6 item 7).
func Print(list []*values.Value, fh *values.Value) (*values.Value, error) {
	return writeList(list, fh, "")
}

// Say is print() with a trailing newline.
func Say(list []*values.Value, fh *values.Value) (*values.Value, error) {
	return writeList(list, fh, "\n")
}

func writeList(list []*values.Value, fh *values.Value, suffix string) (*values.Value, error) {
	g := resolveGlob(fh)
	w, ok := g.Writer.(io.Writer)
	if !ok || w == nil {
		return nil, &diag.Die{Message: fmt.Sprintf("print() on unopened filehandle %s", g.Name)}
	}
	var b strings.Builder
	for _, v := range list {
		b.WriteString(v.ToString())
	}
	b.WriteString(suffix)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return nil, &diag.Die{Message: err.Error()}
	}
	return values.NewInt(1), nil
}

// Select returns the currently-selected filehandle value and, when fh
// is given, installs it as the new default for subsequent print/say
// calls with no explicit filehandle.
func Select(fh *values.Value) (*values.Value, error) {
	ioMu.Lock()
	defer ioMu.Unlock()
	prev := selected
	if fh != nil && fh.Kind == values.KindGlob {
		selected = fh.Glob
	}
	return &values.Value{Kind: values.KindGlob, Glob: prev}, nil
}

// Open opens path in the given mode ("<", ">", ">>") and returns a glob
// value, or a Die carrying the OS error.
func Open(path string, mode string) (*values.Value, error) {
	var flag int
	switch mode {
	case "<", "":
		flag = os.O_RDONLY
	case ">":
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case ">>":
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return nil, &diag.Die{Message: "unsupported open mode " + mode}
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, &diag.Die{Message: err.Error()}
	}
	g := &values.Glob{Name: path}
	if flag == os.O_RDONLY {
		g.Reader = bufio.NewReader(f)
	} else {
		g.Writer = f
	}
	return &values.Value{Kind: values.KindGlob, Glob: g}, nil
}

// Readline reads one line (without the trailing newline) from fh,
// returning undef at EOF.
func Readline(fh *values.Value) (*values.Value, error) {
	g := resolveGlob(fh)
	if g == nil || g.Reader == nil {
		g = stdin
	}
	r, ok := g.Reader.(*bufio.Reader)
	if !ok || r == nil {
		return nil, &diag.Die{Message: fmt.Sprintf("readline() on unopened filehandle %s", g.Name)}
	}
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return values.Undef(), nil
	}
	return values.NewString(strings.TrimRight(line, "\n")), nil
}
