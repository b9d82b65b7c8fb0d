// Package model wraps the speech-model realtime websocket behind the
// relay's ModelTransport interface.
package model

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	openairt "github.com/WqyJh/go-openai-realtime"
)

// Transport is an open realtime session with the speech model.
type Transport struct {
	conn   *openairt.Conn
	closed atomic.Bool
}

// Dial opens a realtime session. A dial failure is fatal for the call it was
// meant to serve: no relay tasks start and the caller reports the call as
// failed.
func Dial(ctx context.Context, apiKey, modelName string) (*Transport, error) {
	client := openairt.NewClient(apiKey)

	var opts []openairt.ConnectOption
	if modelName != "" {
		opts = append(opts, openairt.WithModel(modelName))
	}

	conn, err := client.Connect(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect realtime session: %w", err)
	}

	log.Printf("[Model] Realtime session connected (model %s)", modelName)
	return &Transport{conn: conn}, nil
}

// Send sends a client event to the model.
func (t *Transport) Send(ctx context.Context, event openairt.ClientEvent) error {
	return t.conn.SendMessage(ctx, event)
}

// Read blocks until the next server event arrives.
func (t *Transport) Read(ctx context.Context) (openairt.ServerEvent, error) {
	return t.conn.ReadMessage(ctx)
}

// Close closes the session. It is idempotent; a blocked Read fails with a
// disconnect error.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}
