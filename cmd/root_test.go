// File: cmd/root_test.go
package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"apply", "bridge", "balance"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestProfileFlagOverridesConfig(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		require.NoError(t, rootCmd.PersistentFlags().Set("profile", ""))
	})
	require.NoError(t, rootCmd.PersistentFlags().Set("profile", "testdata/alt-profile.json"))

	// Subcommands hand their own *cobra.Command to initializeConfig; the
	// persistent flag is resolved through Root().
	require.NoError(t, initializeConfig(applyCmd))
	assert.Equal(t, "testdata/alt-profile.json", viper.GetString("run.profile_path"))
}

func TestApplyRequiresJobURL(t *testing.T) {
	err := applyCmd.Args(applyCmd, []string{})
	require.Error(t, err)
	assert.NoError(t, applyCmd.Args(applyCmd, []string{"https://jobs.example.com/acme/123"}))
}
