package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want Address
	}{
		{"", Address{Scheme: SchemeTCP, Host: "127.0.0.1:19999"}},
		{"tcp://10.0.0.1:7000", Address{Scheme: SchemeTCP, Host: "10.0.0.1:7000"}},
		{"localhost:19999", Address{Scheme: SchemeTCP, Host: "localhost:19999"}},
		{"ws://daemon.local:8080/bus", Address{Scheme: SchemeWS, Host: "daemon.local:8080", Path: "/bus"}},
		{"wss://daemon.local", Address{Scheme: SchemeWSS, Host: "daemon.local"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddress_Errors(t *testing.T) {
	_, err := ParseAddress("udp://127.0.0.1:1")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	for _, in := range []string{"tcp://127.0.0.1", "tcp://", "tcp://host:1/path"} {
		_, err := ParseAddress(in)
		assert.ErrorIs(t, err, ErrInvalidAddress, in)
	}
}

func TestAddress_String(t *testing.T) {
	a, err := ParseAddress("ws://h:1/x")
	require.NoError(t, err)
	assert.Equal(t, "ws://h:1/x", a.String())
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{NodeID: "n"}.withDefaults()
	def := DefaultConfig()

	assert.Equal(t, "n", cfg.NodeID)
	assert.Equal(t, def.Address, cfg.Address)
	assert.Equal(t, def.WriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, 256, cfg.InboundQueueSize)
	assert.Equal(t, def.Limits, cfg.Limits)
}
