package clog_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cuemby/colony/pkg/clog"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	clog.Init(clog.Config{Level: clog.InfoLevel, JSONOutput: true, Output: &buf})
	clog.Info("worker boot")

	out := buf.String()
	if !strings.Contains(out, `"message":"worker boot"`) {
		t.Fatalf("missing message field in %q", out)
	}
}

func TestWithWorkerAddsField(t *testing.T) {
	var buf bytes.Buffer
	clog.Init(clog.Config{Level: clog.InfoLevel, JSONOutput: true, Output: &buf})
	clog.WithWorker(2).Info().Msg("slot ready")

	if !strings.Contains(buf.String(), `"worker":2`) {
		t.Fatalf("missing worker field in %q", buf.String())
	}
}

func TestWithForkAddsField(t *testing.T) {
	var buf bytes.Buffer
	clog.Init(clog.Config{Level: clog.InfoLevel, JSONOutput: true, Output: &buf})
	clog.WithFork("pkg.forks:watch").Info().Msg("fork started")

	if !strings.Contains(buf.String(), `"fork":"pkg.forks:watch"`) {
		t.Fatalf("missing fork field in %q", buf.String())
	}
}
