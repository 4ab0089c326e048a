package exlog_test

import (
	"testing"

	"github.com/agentexec/agent-exec/internal/exlog"
	"gotest.tools/v3/assert"
)

func TestBuffer(t *testing.T) {
	l := exlog.NewBuffer()
	l.Info("hello %s", "world")
	func(x exlog.Logger) {
		x.Debug("foo bar")
	}(l)
	assert.DeepEqual(t, []string{
		"[info] hello world",
		"[debug] foo bar",
	}, l.Messages)
}
