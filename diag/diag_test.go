package diag

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDieCatchMessageAppendsLocationUnlessNewlineTerminated(t *testing.T) {
	d := &Die{Message: "boom", Pos: Position{Source: "t.pl", Line: 3}}
	assert.Equal(t, "boom at t.pl line 3.\n", d.CatchMessage())

	withNewline := &Die{Message: "already terminated\n", Pos: Position{Source: "t.pl", Line: 3}}
	assert.Equal(t, "already terminated\n", withNewline.CatchMessage())
}

func TestErrorIncludesPCOnlyWhenNonNegative(t *testing.T) {
	compile := NewCompileError("bad token", Position{Source: "t.pl", Line: 1})
	assert.NotContains(t, compile.Error(), "pc=")

	runtime := NewInterpreterError("boom", Position{Source: "t.pl", Line: 2}, 7)
	assert.Contains(t, runtime.Error(), "pc=7")
}

func TestErrorUnwrapsWrappedCause(t *testing.T) {
	cause := assertError("inner")
	e := &Error{Kind: RuntimeOperatorError, Msg: "wrapped", Pos: Position{}, PC: -1, Err: cause}
	assert.Equal(t, cause, e.Unwrap())
}

func assertError(msg string) error { return &Die{Message: msg} }

func TestWarnWritesToConfiguredSink(t *testing.T) {
	var buf bytes.Buffer
	SetWarnWriter(&buf)
	defer SetWarnWriter(os.Stderr)

	Warn("careful", Position{Source: "t.pl", Line: 5})
	assert.Contains(t, buf.String(), "careful")
	assert.Contains(t, buf.String(), "t.pl line 5")
}
