package relay

import (
	"context"

	openairt "github.com/WqyJh/go-openai-realtime"

	"github.com/callbridge-ai/callbridge/pkg/telephony"
)

// TelephonyTransport is the caller-side media stream. ReadMessage blocks
// until the next envelope arrives; Close must be idempotent and must unblock
// a pending read. Implemented by telephony.Conn.
type TelephonyTransport interface {
	ReadMessage() (*telephony.MediaMessage, error)
	WriteMedia(streamSid, payload string) error
	WriteMark(streamSid, name string) error
	WriteClear(streamSid string) error
	Close() error
}

// ModelTransport is the speech-model realtime session. Read blocks until the
// next server event arrives; Close must be idempotent and must unblock a
// pending read. Implemented by model.Transport.
type ModelTransport interface {
	Send(ctx context.Context, event openairt.ClientEvent) error
	Read(ctx context.Context) (openairt.ServerEvent, error)
	Close() error
}
