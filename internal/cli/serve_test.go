package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_StartsAndStopsGracefully(t *testing.T) {
	env := newCLIEnv(t, true)
	_, err := env.run(t, "enqueue", "queued-before-start")
	require.NoError(t, err)

	rootOpts := &RootOptions{
		Format:       "text",
		Config:       env.config,
		Database:     env.db,
		AgentOptions: env.options(),
	}
	ready := make(chan string, 1)
	opts := &ServeOptions{RootOptions: rootOpts, Listen: "127.0.0.1:0", Ready: ready}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &bytes.Buffer{}
	cmd := NewServeCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not become ready")
	}

	// The foreground flush on startup delivers what was queued earlier.
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/pending")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var records []json.RawMessage
		if json.NewDecoder(resp.Body).Decode(&records) != nil {
			return false
		}
		return len(records) == 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, env.calls.Load(), int32(1))

	resp, err := http.Get("http://" + addr + "/style.css")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, out.String(), "Serving on http://"+addr)
}

func TestServe_ListenFailure(t *testing.T) {
	env := newCLIEnv(t, true)
	rootOpts := &RootOptions{
		Format:       "text",
		Config:       env.config,
		Database:     env.db,
		AgentOptions: env.options(),
	}
	opts := &ServeOptions{RootOptions: rootOpts, Listen: "256.0.0.1:99999"}

	out := &bytes.Buffer{}
	cmd := NewServeCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetContext(context.Background())

	err := runServe(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out.String(), "failed to listen")
}
