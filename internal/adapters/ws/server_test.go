package ws

import (
	"testing"

	"aurora-marketplace-service/internal/config"

	"github.com/rs/zerolog"
)

func TestNewServerConfiguresUpgrader(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "8080"},
		WebSocket: config.WebSocketConfig{
			ReadBufferSize:  2048,
			WriteBufferSize: 4096,
		},
	}

	srv := NewServer(ServerParams{Config: cfg, Logger: zerolog.Nop()})

	if srv.handler.upgrader.ReadBufferSize != 2048 {
		t.Errorf("upgrader ReadBufferSize = %d, want 2048", srv.handler.upgrader.ReadBufferSize)
	}
	if srv.handler.upgrader.WriteBufferSize != 4096 {
		t.Errorf("upgrader WriteBufferSize = %d, want 4096", srv.handler.upgrader.WriteBufferSize)
	}
}
