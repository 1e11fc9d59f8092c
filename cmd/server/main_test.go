package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_MissingConfigFile(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})

	assert.Error(t, cmd.ExecuteContext(t.Context()))
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"unexpected"})

	assert.Error(t, cmd.ExecuteContext(t.Context()))
}
