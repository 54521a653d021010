package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wudi/harp/diag"
)

func TestCatchEvalRendersDieMessageWithLocation(t *testing.T) {
	err := Die("boom", diag.Position{Source: "t.pl", Line: 4}, -1)
	msg := CatchEval(err)
	assert.Contains(t, msg, "boom")
	assert.Contains(t, msg, "t.pl line 4")
}

func TestCatchEvalStringifiesNonDieErrors(t *testing.T) {
	msg := CatchEval(errors.New("plain failure"))
	assert.Equal(t, "plain failure\n", msg)
}
