package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	require.NotNil(t, cmd, "BuildCLI should return a non-nil command")
	assert.Equal(t, "zwalctl", cmd.Use)
	assert.Equal(t, "1.0.0", cmd.Version)

	commands := cmd.Commands()
	assert.Len(t, commands, 5, "should have 5 subcommands")

	names := make(map[string]bool)
	for _, c := range commands {
		names[c.Use] = true
	}
	for _, want := range []string{"open", "write", "read", "recover", "stat"} {
		assert.Truef(t, names[want], "expected %q subcommand", want)
	}

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue)
}

func TestBuildOpenCommand(t *testing.T) {
	cmd := buildOpenCommand()
	assert.Equal(t, "open", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildWriteCommand(t *testing.T) {
	cmd := buildWriteCommand()
	assert.Equal(t, "write", cmd.Use)

	fileFlag := cmd.Flags().Lookup("file")
	require.NotNil(t, fileFlag)

	walFlag := cmd.Flags().Lookup("wal")
	require.NotNil(t, walFlag)
	assert.Equal(t, "false", walFlag.DefValue)
}

func TestBuildReadCommand(t *testing.T) {
	cmd := buildReadCommand()
	assert.Equal(t, "read", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("offset"))
	assert.NotNil(t, cmd.Flags().Lookup("length"))
}

func TestBuildRecoverCommand(t *testing.T) {
	cmd := buildRecoverCommand()
	assert.Equal(t, "recover", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildStatCommand(t *testing.T) {
	cmd := buildStatCommand()
	assert.Equal(t, "stat", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	configFile = "/nonexistent/zwalfs-config.yaml"
	defer func() { configFile = "configs/default.yaml" }()

	cfg, err := loadConfig()
	require.NoError(t, err, "missing config file falls back to defaults")
	require.NotNil(t, cfg)
	assert.Equal(t, uint32(4096), cfg.Device.BlockSize)
}

func TestOpenSession_InMemoryBackend(t *testing.T) {
	configFile = ""
	sess, err := openSession()
	require.NoError(t, err)
	require.NotNil(t, sess)

	zones, err := sess.backend.ListZones()
	require.NoError(t, err)
	assert.NotEmpty(t, zones)
	assert.NotNil(t, sess.alloc)
}
