package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeTracksSessionAcrossLines(t *testing.T) {
	f := newFixture(t, nil)
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"simpleTest","arguments":{"msg":"stdio"}}}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, f.router.Serve(context.Background(), strings.NewReader(in), &out))

	var responses []Message
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var m Message
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		responses = append(responses, m)
	}
	require.Len(t, responses, 3, "the notification gets no reply")

	assert.JSONEq(t, `1`, string(responses[0].ID))
	assert.Empty(t, responses[0].Error)

	var parseErr RPCError
	require.NoError(t, json.Unmarshal(responses[1].Error, &parseErr))
	assert.Equal(t, CodeParseError, parseErr.Code)

	assert.JSONEq(t, `2`, string(responses[2].ID))
	assert.Contains(t, string(responses[2].Result), "Echo: stdio")

	n, err := f.sessions.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "the stdio session ends with the stream")
}

func TestServeStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.router.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
