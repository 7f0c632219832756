package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richsynapse/synapsehub-client/internal/mockbackend"
	"github.com/richsynapse/synapsehub-client/internal/testutil"
)

type cliEnv struct {
	t       *testing.T
	backend *testutil.Backend
	dir     string
}

func newCLIEnv(t *testing.T, opts ...mockbackend.Option) *cliEnv {
	t.Helper()
	backend := testutil.NewBackend(t, opts...)
	dir := t.TempDir()
	t.Setenv("SYNAPSE_ENV", "dev")
	t.Setenv("SYNAPSE_BASE_URL", backend.BaseURL)
	t.Setenv("SYNAPSE_CREDENTIAL_STORE", "sqlite")
	t.Setenv("SYNAPSE_CREDENTIAL_PATH", filepath.Join(dir, "session.db"))
	t.Setenv("SYNAPSE_LOG_LEVEL", "error")
	t.Setenv("SYNAPSE_LOG_FILE", "")
	return &cliEnv{t: t, backend: backend, dir: dir}
}

func (e *cliEnv) run(stdin string, args ...string) (string, string, error) {
	e.t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config-dir", e.dir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestChatPrintsReply(t *testing.T) {
	env := newCLIEnv(t)

	out, errOut, err := env.run("", "chat", "--chat-id", "c-7", "how", "are", "you")
	require.NoError(t, err, errOut)
	assert.Equal(t, "You said: how are you\n", out)

	calls := env.backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{"message": "how are you", "chatId": "c-7"}, calls[0].Params)
}

func TestChatWithoutIDReportsGeneratedOne(t *testing.T) {
	env := newCLIEnv(t)

	_, errOut, err := env.run("", "chat", "hi")
	require.NoError(t, err)
	calls := env.backend.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, errOut, "chat id: "+calls[0].Params["chatId"])
}

func TestChatSyncPrintsWholeReply(t *testing.T) {
	env := newCLIEnv(t)

	out, errOut, err := env.run("", "chat", "--sync", "--chat-id", "c-7", "how", "are", "you")
	require.NoError(t, err, errOut)
	assert.Equal(t, "You said: how are you\n", out)
	assert.Empty(t, env.backend.Calls(), "sync replies do not open a stream")
}

func TestAgentPrintsSteps(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("", "--encoding", "form", "agent", "plan", "dinner")
	require.NoError(t, err)
	assert.Equal(t, strings.Join(mockbackend.StepsReply("plan dinner"), "\n")+"\n", out)
	assert.Equal(t, "POST", env.backend.Calls()[0].Method)
}

func TestBlankMessageFailsWithoutDialing(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("", "agent", " ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message rejected")
	assert.Empty(t, env.backend.Calls())
}

func TestLoginSessionFlowsIntoStreams(t *testing.T) {
	env := newCLIEnv(t, mockbackend.WithLoginRequired())

	_, _, err := env.run("", "chat", "--chat-id", "c", "hello")
	require.Error(t, err, "anonymous stream must be refused")
	assert.Contains(t, err.Error(), "could not open stream")

	out, _, err := env.run("password1\npassword1\n", "register", "-u", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "registered alice")

	out, _, err = env.run("password1\n", "login", "-u", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as alice")

	out, _, err = env.run("", "whoami", "--refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")

	out, _, err = env.run("", "chat", "--chat-id", "c", "hello")
	require.NoError(t, err)
	assert.Equal(t, "You said: hello\n", out)
	calls := env.backend.Calls()
	assert.NotEmpty(t, calls[len(calls)-1].Token)

	_, _, err = env.run("", "logout")
	require.NoError(t, err)
	out, _, err = env.run("", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "not logged in\n", out)
}

func TestDoctor(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run("", "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "credential_store")
	assert.NotContains(t, out, "overall: unhealthy")
}

func TestInitThenLoad(t *testing.T) {
	env := newCLIEnv(t)
	root := t.TempDir()
	_, _, err := env.run("", "init", "--root", root, "--store", "memory")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "config", "dev", "client.ini"))
	require.NoError(t, err)
}

func TestVersion(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run("", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit=")
}
