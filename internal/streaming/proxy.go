// Package streaming bridges a browser websocket to the AssemblyAI Universal
// Streaming endpoint. The browser sends binary PCM16 frames at 16kHz and
// receives the upstream JSON text frames (Begin, Turn, Termination) as-is.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultEndpoint matches the official Universal Streaming sample querystring.
const DefaultEndpoint = "wss://streaming.assemblyai.com/v3/ws?sample_rate=16000&format_turns=true"

type Proxy struct {
	apiKey   string
	endpoint string
	dialer   *websocket.Dialer
	log      *zap.SugaredLogger
}

func NewProxy(apiKey string, log *zap.SugaredLogger) *Proxy {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Proxy{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		dialer:   websocket.DefaultDialer,
		log:      log,
	}
}

// Enabled reports whether an upstream key is configured.
func (p *Proxy) Enabled() bool {
	return p.apiKey != ""
}

// Bridge connects to the upstream recognizer and pumps frames both ways
// until either side closes. Client binary frames carry audio, client text
// frames carry control messages; both forward unchanged. A client disconnect
// terminates the upstream session politely.
func (p *Proxy) Bridge(ctx context.Context, client *websocket.Conn) error {
	header := http.Header{"Authorization": []string{p.apiKey}}
	upstream, resp, err := p.dialer.DialContext(ctx, p.endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial streaming upstream: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial streaming upstream: %w", err)
	}
	defer func() { _ = upstream.Close() }()

	errc := make(chan error, 2)
	go func() { errc <- p.pumpToUpstream(client, upstream) }()
	go func() { errc <- p.pumpToClient(upstream, client) }()

	// First pump to stop wins; closing both ends unblocks the other.
	err = <-errc
	_ = upstream.Close()
	_ = client.Close()
	<-errc
	return err
}

// pumpToUpstream forwards client frames upstream. Only this goroutine writes
// to the upstream connection, including the Terminate control frame.
func (p *Proxy) pumpToUpstream(client, upstream *websocket.Conn) error {
	for {
		msgType, data, err := client.ReadMessage()
		if err != nil {
			p.terminate(upstream)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := upstream.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return fmt.Errorf("forward audio upstream: %w", err)
			}
		case websocket.TextMessage:
			if err := upstream.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("forward control upstream: %w", err)
			}
		}
	}
}

// pumpToClient forwards upstream frames to the client. Only this goroutine
// writes to the client connection.
func (p *Proxy) pumpToClient(upstream, client *websocket.Conn) error {
	for {
		msgType, data, err := upstream.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			p.sendError(client, "upstream closed")
			return err
		}

		switch msgType {
		case websocket.TextMessage:
			if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("forward transcript to client: %w", err)
			}
		case websocket.BinaryMessage:
			// Not expected from the recognizer; wrap so the client still
			// sees JSON.
			wrapped, _ := json.Marshal(map[string]any{
				"type":      "RawBinary",
				"bytes_len": len(data),
			})
			if err := client.WriteMessage(websocket.TextMessage, wrapped); err != nil {
				return fmt.Errorf("forward raw frame to client: %w", err)
			}
		}
	}
}

func (p *Proxy) terminate(upstream *websocket.Conn) {
	msg, _ := json.Marshal(map[string]string{"type": "Terminate"})
	if err := upstream.WriteMessage(websocket.TextMessage, msg); err != nil {
		p.log.Debugw("upstream terminate failed", "error", err)
	}
}

func (p *Proxy) sendError(client *websocket.Conn, reason string) {
	msg, _ := json.Marshal(map[string]string{"type": "Error", "reason": reason})
	if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
		p.log.Debugw("client error notify failed", "error", err)
	}
}
