package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"miniredis/internal/cache"
	"miniredis/internal/command"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSession(opts ...Option) *Session {
	return NewSession(command.New(cache.New(cache.Config{})), opts...)
}

// responses strips prompts the way a driver reading the transcript would.
func responses(out string) []string {
	var res []string
	for _, chunk := range strings.Split(out, "mini-redis> ") {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			res = append(res, chunk)
		}
	}
	return res
}

func TestSession_Transcript(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		"CONFIG SET maxmemory 3",
		"SET k1 v1",
		"SET k2 v2",
		"SET k3 v3",
		"GET k1",
		"SET k4 v4",
		"GET k2",
		"GET k1",
		"GET k4",
		"INFO memory",
		"DBSIZE",
		"exit",
		"GET k1",
	}, "\n") + "\n")
	var out bytes.Buffer

	require.NoError(t, newSession().Run(context.Background(), in, &out))

	assert.Equal(t, []string{
		"OK", "OK", "OK", "OK",
		`"v1"`,
		"OK",
		"(nil)",
		`"v1"`,
		`"v4"`,
		"used_memory:3\nmaxmemory:3\nevicted_keys:1",
		"(integer) 3",
	}, responses(out.String()))
	assert.True(t, strings.HasSuffix(out.String(), "mini-redis> "), "nothing is printed after exit")
}

func TestSession_PromptBeforeEveryLine(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("SET a 1\n\n   \nGET a\n")

	require.NoError(t, newSession().Run(context.Background(), in, &out))

	assert.Equal(t, "mini-redis> OK\nmini-redis> mini-redis> mini-redis> \"1\"\nmini-redis> ", out.String())
}

func TestSession_CustomPromptAndNoTrailingNewline(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("DBSIZE")

	require.NoError(t, newSession(WithPrompt("> ")).Run(context.Background(), in, &out))
	assert.Equal(t, "> (integer) 0\n> ", out.String())
}

func TestSession_ErrorsDoNotStopTheLoop(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("NOPE\nEXPIRE k soon\nSET k v\nGET k\n")

	require.NoError(t, newSession().Run(context.Background(), in, &out))
	assert.Equal(t, []string{
		"(error) ERR unknown command 'NOPE'",
		"(error) ERR value is not an integer",
		"OK",
		`"v"`,
	}, responses(out.String()))
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func TestSession_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out lockedBuffer
	go func() { done <- newSession().Run(ctx, pr, &out) }()

	_, err := io.WriteString(pw, "SET a 1\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "OK")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Unblock the reader goroutine so goleak sees it exit.
	require.NoError(t, pw.Close())
	require.NoError(t, pr.Close())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestSession_ReadError(t *testing.T) {
	err := newSession().Run(context.Background(), failingReader{}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestSession_WriteError(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	err := newSession().Run(context.Background(), pr, failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed pipe")

	require.NoError(t, pw.Close())
	require.NoError(t, pr.Close())
}

func TestSession_LogsWithSessionID(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := newSession(WithLogger(logger))

	require.NoError(t, s.Run(context.Background(), strings.NewReader("DBSIZE\n"), io.Discard))

	assert.NotEmpty(t, s.ID())
	assert.Contains(t, logs.String(), "session="+s.ID())
	assert.Contains(t, logs.String(), "commands=1")
	assert.NotEqual(t, s.ID(), newSession().ID())
}

func TestNewSession_DefaultLoggerDiscards(t *testing.T) {
	assert.False(t, newSession().log.Enabled(context.Background(), slog.LevelError))
}
