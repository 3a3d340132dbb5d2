package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusWithIcon(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Status("🔍", "searching")
	assert.Equal(t, "🔍 searching\n", buf.String())
}

func TestStatusWithoutIconIndents(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Status("", "detail line")
	assert.Equal(t, "   detail line\n", buf.String())
}

func TestStatusf(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Statusf("", "found %d results", 3)
	assert.Contains(t, buf.String(), "found 3 results")
}

func TestSuccessAndWarning(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.Successf("applied %d changes", 2)
	w.Warning("redis unavailable")

	out := buf.String()
	assert.Contains(t, out, "✅ applied 2 changes")
	assert.Contains(t, out, "redis unavailable")
}

func TestNewline(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Newline()
	assert.Equal(t, "\n", buf.String())
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Progress(1, 2, "halfway")
	assert.Contains(t, buf.String(), "50%")
	assert.False(t, strings.HasSuffix(buf.String(), "\n"))

	w.Progress(2, 2, "done")
	assert.Contains(t, buf.String(), "100%")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestProgressIgnoresZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Progress(1, 0, "nothing")
	assert.Empty(t, buf.String())
}
