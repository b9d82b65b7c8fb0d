package relay

import (
	"context"
	"fmt"
	"log"

	openairt "github.com/WqyJh/go-openai-realtime"
)

// openingTurnText is the synthetic user turn sent on outbound-initiated
// calls so the assistant greets the callee instead of waiting in silence.
const openingTurnText = "Begin the call conversation in a natural way that " +
	"aligns with your defined purpose. Greet the user appropriately."

// initializeSession configures the model session: companded 8kHz telephony
// audio in both directions, voice identity, server-side VAD turn detection,
// text+audio modalities, and the call's stored instructions. Instructions
// are consumed from the store exactly once; a later call reusing the same
// identifier finds nothing.
func (r *Relay) initializeSession(ctx context.Context) error {
	instructions := r.prompts.GetAndClear(r.session.CallID())

	voice := openairt.Voice(r.cfg.Voice)
	if voice == "" {
		voice = openairt.VoiceAlloy
	}

	update := openairt.SessionUpdateEvent{
		Session: openairt.ClientSession{
			Modalities:        []openairt.Modality{openairt.ModalityText, openairt.ModalityAudio},
			Instructions:      instructions,
			Voice:             voice,
			InputAudioFormat:  openairt.AudioFormatG711Ulaw,
			OutputAudioFormat: openairt.AudioFormatG711Ulaw,
			TurnDetection: &openairt.ClientTurnDetection{
				Type: openairt.ClientTurnDetectionTypeServerVad,
			},
		},
	}
	if err := r.model.Send(ctx, update); err != nil {
		return fmt.Errorf("session update: %w", err)
	}
	log.Printf("[Relay] Model session configured for call %s", r.session.CallID())

	if r.cfg.SpeakFirst {
		opening := openairt.ConversationItemCreateEvent{
			Item: openairt.MessageItem{
				Type: openairt.MessageItemTypeMessage,
				Role: openairt.MessageRoleUser,
				Content: []openairt.MessageContentPart{
					{
						Type: openairt.MessageContentTypeInputText,
						Text: openingTurnText,
					},
				},
			},
		}
		if err := r.model.Send(ctx, opening); err != nil {
			return fmt.Errorf("opening turn: %w", err)
		}
		if err := r.model.Send(ctx, openairt.ResponseCreateEvent{}); err != nil {
			return fmt.Errorf("response create: %w", err)
		}
	}

	return nil
}
