package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSkillInstallConfigFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "install"}
	cmd.Flags().StringSliceP("skill", "s", nil, "")
	cmd.Flags().Bool("all", false, "")
	cmd.Flags().StringSliceP("agent", "a", nil, "")
	cmd.Flags().StringP("project", "p", "", "")

	require.NoError(t, cmd.Flags().Parse([]string{"-s", "pdf", "--skill", "notes", "-a", "claude-code,cursor", "-p", "/tmp/proj"}))

	config := getSkillInstallConfigFromFlags(cmd)
	assert.Equal(t, []string{"pdf", "notes"}, config.Skills)
	assert.Equal(t, []string{"claude-code", "cursor"}, config.Agents)
	assert.Equal(t, "/tmp/proj", config.ProjectDir)
	assert.False(t, config.All)
}

func TestGetSkillInstallConfigFromFlagsMissingFlags(t *testing.T) {
	config := getSkillInstallConfigFromFlags(&cobra.Command{Use: "install"})
	assert.Equal(t, NewSkillInstallConfig(), config)
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(nil))
	assert.Equal(t, "-", formatTime(&time.Time{}))

	ts := time.Date(2024, 3, 5, 14, 7, 0, 0, time.Local)
	assert.Equal(t, "2024-03-05 14:07", formatTime(&ts))
}

func TestYesNo(t *testing.T) {
	assert.Equal(t, "yes", yesNo(true))
	assert.Equal(t, "-", yesNo(false))
}
