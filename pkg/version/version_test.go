package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestInfo_String(t *testing.T) {
	info := Info{
		Version:   "0.4.0",
		GitCommit: "abc123",
		BuildTime: "2026-01-02T03:04:05Z",
		GoVersion: "go1.25.1",
		Platform:  "linux/amd64",
	}

	assert.Equal(t, "forks 0.4.0 (commit abc123, built 2026-01-02T03:04:05Z, go1.25.1 linux/amd64)", info.String())
}

func TestInfo_JSON(t *testing.T) {
	info := Info{Version: "0.4.0", GitCommit: "abc123"}

	out, err := info.JSON()
	require.NoError(t, err)

	var decoded Info
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, info, decoded)
	assert.Contains(t, out, `"gitCommit": "abc123"`)
}

func TestUserAgent(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "1.2.3"
	assert.Equal(t, "forks/1.2.3", UserAgent())
}
