package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	l := newLogger()

	formatter, ok := l.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestGetLogger_FallsBackToGlobal(t *testing.T) {
	entry := G(context.Background())
	assert.Equal(t, L.Logger, entry.Logger)
}

func TestWithLogger(t *testing.T) {
	custom := logrus.NewEntry(logrus.New()).WithField("op", "install")
	ctx := WithLogger(context.Background(), custom)

	got := GetLogger(ctx)
	assert.Equal(t, custom.Logger, got.Logger)
	assert.Equal(t, "install", got.Data["op"])
}

func TestWithField(t *testing.T) {
	ctx := WithField(context.Background(), "source", "acme/toolkit")
	ctx = WithField(ctx, "skill", "pdf-tools")

	entry := G(ctx)
	assert.Equal(t, "acme/toolkit", entry.Data["source"])
	assert.Equal(t, "pdf-tools", entry.Data["skill"])
}

func TestSetLogLevel(t *testing.T) {
	original := L.Logger.GetLevel()
	defer L.Logger.SetLevel(original)

	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	err := SetLogLevel("loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())
}

func TestSetLogFormat_JSON(t *testing.T) {
	l := logrus.New()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	setLoggerFormat(l, FormatJSON)

	l.WithField("source", "acme/toolkit").Warn("pull failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "pull failed", line["message"])
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "acme/toolkit", line["source"])
	assert.Contains(t, line, "timestamp")
}

func TestSetLogFormat_UnknownFallsBackToText(t *testing.T) {
	l := logrus.New()
	setLoggerFormat(l, "xml")
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
}

func TestConfigure(t *testing.T) {
	originalLevel := L.Logger.GetLevel()
	originalFormatter := L.Logger.Formatter
	originalOut := L.Logger.Out
	defer func() {
		L.Logger.SetLevel(originalLevel)
		L.Logger.Formatter = originalFormatter
		L.Logger.SetOutput(originalOut)
	}()

	var buf bytes.Buffer
	SetLogOutput(&buf)
	require.NoError(t, Configure("info", FormatText))

	L.Info("refreshed")
	assert.True(t, strings.Contains(buf.String(), "refreshed"))

	require.NoError(t, Configure("", FormatJSON))
	assert.Equal(t, logrus.InfoLevel, L.Logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, L.Logger.Formatter)
}
