package mcp

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Kinds(t *testing.T) {
	tests := []struct {
		msg  string
		want kind
	}{
		{`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, kindRequest},
		{`{"jsonrpc":"2.0","id":"a","method":"initialize","params":{}}`, kindRequest},
		{`{"jsonrpc":"2.0","method":"notifications/initialized"}`, kindNotification},
		{`{"jsonrpc":"2.0","id":null,"method":"notifications/cancelled"}`, kindNotification},
		{`{"jsonrpc":"2.0","id":1,"result":{}}`, kindResponse},
		{`{"jsonrpc":"2.0","id":1,"result":null}`, kindResponse},
		{`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"x"}}`, kindResponse},
	}
	for _, tt := range tests {
		_, k, err := parse(json.RawMessage(tt.msg))
		require.NoError(t, err, tt.msg)
		assert.Equal(t, tt.want, k, tt.msg)
	}

	for _, bad := range []string{`[]`, `"x"`, `{"jsonrpc":"2.0"}`, `{"id":1}`, `{`} {
		_, _, err := parse(json.RawMessage(bad))
		assert.ErrorIs(t, err, ErrInvalidMessage, bad)
	}
}

func TestWithID_PreservesFields(t *testing.T) {
	out, err := withID(json.RawMessage(`{"jsonrpc":"2.0","id":7,"method":"m","params":{"a":[1,2]}}`), json.RawMessage(`"bridge:1"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"bridge:1","method":"m","params":{"a":[1,2]}}`, string(out))

	_, err = withID(json.RawMessage(`null`), json.RawMessage(`1`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestErrorResponse(t *testing.T) {
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"Method not found: x"}}`,
		string(errorResponse(json.RawMessage(`3`), CodeMethodNotFound, "Method not found: x")))
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"bad"}}`,
		string(errorResponse(nil, CodeParseError, "bad")))
}

func TestIDKey(t *testing.T) {
	assert.Equal(t, idKey(json.RawMessage(`{ "a" : 1 }`)), idKey(json.RawMessage(`{"a":1}`)))
	assert.NotEqual(t, idKey(json.RawMessage(`1`)), idKey(json.RawMessage(`"1"`)))
}

func TestInbox(t *testing.T) {
	b := newInbox()
	ctx := context.Background()

	b.push(json.RawMessage(`1`))
	b.push(json.RawMessage(`2`))
	for _, want := range []string{"1", "2"} {
		got, err := b.pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := b.pop(timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.push(json.RawMessage(`3`))
	}()
	got, err := b.pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3", string(got))

	b.close()
	assert.False(t, b.push(json.RawMessage(`4`)))
	_, err = b.pop(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
