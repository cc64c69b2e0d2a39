package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "catalogctl", cmd.Use)
	assert.Contains(t, cmd.Long, "CatalogService")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"product", "create"},
		{"product", "delete"},
		{"cart", "add"},
		{"sequence", "next"},
		{"sequence", "probe"},
		{"catalog", "search"},
		{"catalog", "watch"},
		{"events", "tail"},
	}

	for _, path := range commands {
		t.Run(path[0]+"_"+path[1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for name, def := range map[string]string{
		"addr":    defaultAddr,
		"format":  "text",
		"timeout": defaultTimeout.String(),
		"verbose": "false",
	} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
	require.NotNil(t, cmd.PersistentFlags().Lookup("email"))
}

func TestProductCreateRequiredFlags(t *testing.T) {
	cmd := NewRootCommand()
	createCmd, _, err := cmd.Find([]string{"product", "create"})
	require.NoError(t, err)

	for _, name := range []string{"title", "price", "image"} {
		flag := createCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"], name)
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "yaml", "sequence", "next"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEnvOr(t *testing.T) {
	original := lookupEnv
	t.Cleanup(func() { lookupEnv = original })

	lookupEnv = func(name string) string {
		if name == envAddr {
			return "  catalog:50051 "
		}
		return ""
	}

	assert.Equal(t, "catalog:50051", envOr(envAddr, defaultAddr))
	assert.Equal(t, "fallback", envOr(envEmail, "fallback"))
}

func TestVersionCommand(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		t.Run(format, func(t *testing.T) {
			var out bytes.Buffer
			cmd := NewRootCommand()
			cmd.SetArgs([]string{"--format", format, "version"})
			cmd.SetOut(&out)

			require.NoError(t, cmd.ExecuteContext(context.Background()))
			if format == "json" {
				assert.Contains(t, out.String(), `"version":"dev"`)
				return
			}
			assert.Contains(t, out.String(), "version=dev")
		})
	}
}
