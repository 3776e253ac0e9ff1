package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestNewWithWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "chatty")

	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.Contains(t, buf.String(), "Unknown log level")
}

func TestNew_WritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "info")
	require.NoError(t, err)

	l.Infof("dispatch started")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "dispatch.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "dispatch started")
}
