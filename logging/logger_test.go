package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Logger = (*StructuredLogger)(nil)

type recordingLogger struct {
	NoOpLogger
	args [][]any
}

func (r *recordingLogger) Info(_ string, args ...any) { r.args = append(r.args, args) }

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
}

func TestStructuredLogger_AttributesAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf}).
		WithComponent("coordinator").
		WithSession("s1", "r1")

	l.Debug("dropped")
	l.Info("coordinator.dispatch", "tasks", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	rec := lines[0]
	assert.Equal(t, "coordinator.dispatch", rec["msg"])
	assert.Equal(t, "coordinator", rec["component"])
	assert.Equal(t, "s1", rec["session_id"])
	assert.Equal(t, "r1", rec["run_id"])
	assert.EqualValues(t, 3, rec["tasks"])
}

func TestForComponentAndForRun(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	ForRun(ForComponent(base, "worker"), "s1", "r1").Info("worker.run.completed")
	ForComponent(nil, "worker").Info("ignored")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "worker", lines[0]["component"])
	assert.Equal(t, "r1", lines[0]["run_id"])

	rec := &recordingLogger{}
	ForRun(rec, "s2", "r2").Info("coordinator.run.start", "tasks", 2)
	require.Len(t, rec.args, 1)
	assert.Equal(t, []any{"session_id", "s2", "run_id", "r2", "tasks", 2}, rec.args[0])

	assert.Same(t, rec, ForComponent(rec, "api"))
	assert.IsType(t, NoOpLogger{}, ForRun(nil, "s", "r"))
}

func TestDomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "text", Output: &buf})

	LogCapabilityCall(l, "registry-lookup", "get_company_officers", 2, 15*time.Millisecond, errors.New("timeout"))
	LogReasonerCall(l, "gpt-4o", 120, time.Second, nil)
	LogResearchRun(l, "Acme Ltd", 2, "partial", time.Second)

	out := buf.String()
	assert.Contains(t, out, "capability.call.failed")
	assert.Contains(t, out, "attempt=2")
	assert.Contains(t, out, "reasoner.call.completed")
	assert.Contains(t, out, "overall_status=partial")
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	l := NewSlogLogger(LogLevelInfo, "text", false)
	assert.Same(t, l, OrNoOp(l))
}
