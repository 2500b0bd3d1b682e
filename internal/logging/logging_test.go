package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := Verbose()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbose(orig)
	})
	return &buf
}

func TestVerboseGatesDebug(t *testing.T) {
	buf := capture(t)

	SetVerbose(true)
	Debugf("walk %s", "main")
	assert.Contains(t, buf.String(), "[DEBUG] walk main")

	buf.Reset()
	SetVerbose(false)
	Debugf("should not appear")
	Infof("nor this")
	Warnf("nor this")
	assert.Zero(t, buf.Len())
}

func TestErrorAlwaysPrints(t *testing.T) {
	buf := capture(t)
	SetVerbose(false)

	Errorf("catalog %s missing", "zig")
	assert.Contains(t, buf.String(), "[ERROR] catalog zig missing")
}

func TestLevels(t *testing.T) {
	buf := capture(t)
	SetVerbose(true)

	Debugf("debug")
	Infof("info")
	Warnf("warn")
	Errorf("error")

	for _, level := range []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"} {
		assert.Contains(t, buf.String(), level)
	}
}
