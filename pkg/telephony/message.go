// Package telephony implements the media-stream side of the relay: the
// wire envelope spoken by the telephony provider over its websocket, and a
// connection type with synchronized writes and idempotent close.
//
// Protocol (one JSON envelope per text frame, tagged by "event"):
//
//	inbound:  connected, start, media, mark, stop
//	outbound: media, mark, clear
//
// Reference: https://www.twilio.com/docs/voice/media-streams
package telephony

import "strconv"

// Inbound and outbound event names.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventClear     = "clear"
)

// MediaMessage is a media-stream websocket envelope.
type MediaMessage struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSid      string        `json:"streamSid,omitempty"`
	Protocol       string        `json:"protocol,omitempty"`
	Version        string        `json:"version,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload carries stream initialization data.
type StartPayload struct {
	AccountSid       string            `json:"accountSid"`
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaFormat describes the stream's audio encoding.
type MediaFormat struct {
	Encoding   string `json:"encoding"`   // "audio/x-mulaw"
	SampleRate int    `json:"sampleRate"` // 8000
	Channels   int    `json:"channels"`   // 1
}

// MediaPayload carries one frame of base64-encoded audio. Timestamp is the
// caller-reported media clock in milliseconds since stream start, sent on
// the wire as a decimal string.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// TimestampMs parses the frame's media clock value.
func (p *MediaPayload) TimestampMs() (int64, error) {
	return strconv.ParseInt(p.Timestamp, 10, 64)
}

// StopPayload carries stream termination data.
type StopPayload struct {
	AccountSid string `json:"accountSid"`
	CallSid    string `json:"callSid"`
}

// MarkPayload carries a playback acknowledgment token.
type MarkPayload struct {
	Name string `json:"name"`
}
