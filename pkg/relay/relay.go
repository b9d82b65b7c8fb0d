package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	openairt "github.com/WqyJh/go-openai-realtime"

	"github.com/callbridge-ai/callbridge/pkg/promptstore"
	"github.com/callbridge-ai/callbridge/pkg/telephony"
)

// markName is the acknowledgment token attached to every forwarded audio
// chunk.
const markName = "responsePart"

// errCallEnded signals a graceful stop event from the telephony stream.
var errCallEnded = errors.New("relay: call ended")

// Config holds per-call relay settings.
type Config struct {
	// Voice is the model voice identity. Defaults to alloy.
	Voice string

	// SpeakFirst makes the assistant open the conversation. Set for
	// outbound-initiated calls, where the callee expects to be greeted.
	SpeakFirst bool
}

// Relay bridges one telephony media stream to one speech-model session. It
// owns exactly one call: two pump goroutines run for the lifetime of the
// call and both transports are torn down when either reaches a terminal
// condition.
type Relay struct {
	cfg     Config
	session *Session
	tel     TelephonyTransport
	model   ModelTransport
	prompts *promptstore.Store
}

// New creates a relay for a call. Both transports must already be open.
func New(callID string, tel TelephonyTransport, model ModelTransport, prompts *promptstore.Store, cfg Config) *Relay {
	return &Relay{
		cfg:     cfg,
		session: NewSession(callID),
		tel:     tel,
		model:   model,
		prompts: prompts,
	}
}

// Session returns the call's shared session record.
func (r *Relay) Session() *Session {
	return r.session
}

// Run initializes the model session and relays until either transport
// reaches a terminal condition, then tears both down. A disconnect on either
// side is normal termination, not an error; the only error Run returns is a
// session-initialization failure, which occurs before the relay tasks start.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.initializeSession(ctx); err != nil {
		r.closeTransports()
		r.session.Terminate()
		return err
	}

	done := make(chan struct{}, 2)
	go func() {
		r.pumpTelephony(ctx)
		done <- struct{}{}
	}()
	go func() {
		r.pumpModel(ctx)
		done <- struct{}{}
	}()

	// Close both transports on cancellation so blocked reads unwind.
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.closeTransports()
		case <-finished:
		}
	}()

	// Join: the call is over when either pump exits. Closing both transports
	// fails the sibling's blocked read, which it treats as normal
	// termination, so no task is left blocked on a dead peer.
	<-done
	r.closeTransports()
	<-done
	close(finished)

	r.session.Terminate()
	r.prompts.Evict(r.session.CallID())
	log.Printf("[Relay] Call %s finished", r.session.CallID())
	return nil
}

// closeTransports closes both transports. Both Close implementations are
// idempotent, so this is safe to reach from multiple paths.
func (r *Relay) closeTransports() {
	if err := r.tel.Close(); err != nil {
		log.Printf("[Relay] Telephony close: %v", err)
	}
	if err := r.model.Close(); err != nil {
		log.Printf("[Relay] Model close: %v", err)
	}
}

// pumpTelephony is the inbound relay: it consumes telephony frames in strict
// arrival order and forwards caller audio to the model.
func (r *Relay) pumpTelephony(ctx context.Context) {
	for {
		msg, err := r.tel.ReadMessage()
		if err != nil {
			if telephony.IsDisconnect(err) {
				log.Printf("[Relay] Telephony stream disconnected")
			} else {
				log.Printf("[Relay] Telephony read failed: %v", err)
			}
			return
		}

		if err := r.handleTelephonyEvent(ctx, msg); err != nil {
			if errors.Is(err, errCallEnded) {
				log.Printf("[Relay] Telephony call terminated")
			} else {
				log.Printf("[Relay] Telephony event handling failed: %v", err)
			}
			return
		}
	}
}

func (r *Relay) handleTelephonyEvent(ctx context.Context, msg *telephony.MediaMessage) error {
	switch msg.Event {
	case telephony.EventConnected:
		log.Printf("[Relay] Telephony stream connected (protocol %s, version %s)",
			msg.Protocol, msg.Version)

	case telephony.EventStart:
		if msg.Start == nil {
			log.Printf("[Relay] Start event missing payload")
			return nil
		}
		r.session.BeginStream(msg.Start.StreamSid)
		log.Printf("[Relay] Stream started: %s", msg.Start.StreamSid)

	case telephony.EventMedia:
		return r.handleCallerMedia(ctx, msg)

	case telephony.EventMark:
		if !r.session.AckMark() {
			log.Printf("[Relay] Mark acknowledgment with empty queue, ignoring")
		}

	case telephony.EventStop:
		return errCallEnded

	default:
		log.Printf("[Relay] Unhandled telephony event: %s", msg.Event)
	}
	return nil
}

// handleCallerMedia advances the media clock and forwards the audio payload
// to the model. The payload passes through unchanged; only the envelope
// changes.
func (r *Relay) handleCallerMedia(ctx context.Context, msg *telephony.MediaMessage) error {
	if msg.Media == nil || msg.Media.Payload == "" {
		return nil
	}
	if r.session.StreamSid() == "" {
		log.Printf("[Relay] Media frame before stream start, dropping")
		return nil
	}

	if msg.Media.Timestamp != "" {
		ts, err := msg.Media.TimestampMs()
		if err != nil {
			log.Printf("[Relay] Bad media timestamp %q: %v", msg.Media.Timestamp, err)
		} else if !r.session.ObserveMediaClock(ts) {
			log.Printf("[Relay] Media clock regression (%d < %d), ignoring",
				ts, r.session.MediaClock())
		}
	}

	return r.model.Send(ctx, openairt.InputAudioBufferAppendEvent{
		Audio: msg.Media.Payload,
	})
}

// pumpModel is the outbound relay: it consumes model events, forwards
// synthesized audio to the telephony stream, and triggers interruption
// handling on caller speech. Any processing error is fatal for the call.
func (r *Relay) pumpModel(ctx context.Context) {
	for {
		ev, err := r.model.Read(ctx)
		if err != nil {
			log.Printf("[Relay] Model session closed: %v", err)
			return
		}

		if err := r.handleModelEvent(ctx, ev); err != nil {
			log.Printf("[Relay] Model event handling failed: %v", err)
			return
		}
	}
}

func (r *Relay) handleModelEvent(ctx context.Context, ev openairt.ServerEvent) error {
	switch e := ev.(type) {
	case openairt.ResponseAudioDeltaEvent:
		return r.handleModelAudio(e)

	case openairt.InputAudioBufferSpeechStartedEvent:
		log.Printf("[Relay] Caller speech detected")
		if itemID := r.session.AssistantItem(); itemID != "" {
			log.Printf("[Relay] Interrupting response item %s", itemID)
			return r.handleInterruption(ctx)
		}

	case openairt.SessionCreatedEvent,
		openairt.ResponseDoneEvent,
		openairt.RateLimitsUpdatedEvent,
		openairt.InputAudioBufferCommittedEvent,
		openairt.InputAudioBufferSpeechStoppedEvent,
		openairt.ErrorEvent:
		r.logModelEvent(ev)

	default:
		log.Printf("[Relay] Unhandled model event: %s", ev.ServerEventType())
	}
	return nil
}

// handleModelAudio forwards one synthesized audio chunk to the telephony
// stream and emits a playback mark so downstream buffering stays observable.
func (r *Relay) handleModelAudio(ev openairt.ResponseAudioDeltaEvent) error {
	// Both transports use the same wire alphabet, but they are independent
	// protocols: decode and re-encode instead of assuming the encodings
	// match.
	raw, err := base64.StdEncoding.DecodeString(ev.Delta)
	if err != nil {
		return fmt.Errorf("decode audio delta: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(raw)

	streamSid := r.session.StreamSid()
	if streamSid == "" {
		log.Printf("[Relay] Model audio before stream start, dropping")
		return nil
	}

	if err := r.tel.WriteMedia(streamSid, payload); err != nil {
		return fmt.Errorf("forward audio: %w", err)
	}

	// Anchor the response start to the caller's last known media time, not
	// local wall-clock time; truncation math depends on it.
	r.session.AnchorResponse()
	if ev.ItemID != "" {
		r.session.SetAssistantItem(ev.ItemID)
	}

	r.session.PushMark(markName)
	if err := r.tel.WriteMark(streamSid, markName); err != nil {
		return fmt.Errorf("send mark: %w", err)
	}
	return nil
}

func (r *Relay) logModelEvent(ev openairt.ServerEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Relay] Model event: %s", ev.ServerEventType())
		return
	}
	log.Printf("[Relay] Model event %s: %s", ev.ServerEventType(), data)
}
