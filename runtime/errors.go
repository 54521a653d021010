// Error/warning emitters (spec.md §6 item 5): die/warn/catch_eval. A
// thin bridge over package diag so the interpreter's OP_DIE/OP_WARN
// handlers and the EVAL_CATCH path never touch diag directly.
package runtime

import "github.com/wudi/harp/diag"

// Die raises the Perl-level exception carried through the eval-catch
// stack (spec.md §3). pos and pc are the source position and program
// counter the interpreter stamps on at the point of the DIE opcode.
func Die(message string, pos diag.Position, pc int) error {
	return &diag.Die{Message: message, Pos: pos, PC: pc}
}

// Warn writes message to the process-wide warning sink.
func Warn(message string, pos diag.Position) {
	diag.Warn(message, pos)
}

// CatchEval computes the user-visible error-variable contents for an
// intercepted exception (spec.md §6 item 5): a *diag.Die renders its
// own source-suffixed message; any other error is stringified as-is,
// matching the teacher's own "wrap whatever reached the catch site"
// behavior in vm/errors.go.
func CatchEval(err error) string {
	if die, ok := err.(*diag.Die); ok {
		return die.CatchMessage()
	}
	return err.Error() + "\n"
}
