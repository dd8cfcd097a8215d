package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionDirs(t *testing.T, output string) int {
	t.Helper()
	entries, err := os.ReadDir(output)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && e.Name() != "logs" {
			n++
		}
	}
	return n
}

func TestWatch_RerunsOnChange(t *testing.T) {
	env := setupTestEnv(t, "true")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"watch", env.prompt,
		"--config", env.config, "--output", env.output, "--debounce", "50ms"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return sessionDirs(t, env.output) == 1 },
		10*time.Second, 20*time.Millisecond, "initial session")

	// The watcher is registered right after the first run; give it a moment.
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, os.WriteFile(env.prompt, []byte("subtract two numbers\n"), 0o644))

	require.Eventually(t, func() bool { return sessionDirs(t, env.output) == 2 },
		10*time.Second, 20*time.Millisecond, "session after change")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatch_MissingPrompt(t *testing.T) {
	env := setupTestEnv(t, "true")

	_, _, err := execute(t, "watch", filepath.Join(env.dir, "missing.txt"), "--config", env.config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt file not found")
}
