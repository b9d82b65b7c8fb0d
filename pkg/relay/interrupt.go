package relay

import (
	"context"
	"fmt"
	"log"

	openairt "github.com/WqyJh/go-openai-realtime"
)

// handleInterruption runs on the outbound task when caller speech is
// detected mid-response. It computes how many milliseconds of the in-flight
// response the caller actually heard, tells the model to truncate its record
// of that item at that point, and tells the telephony side to drop audio it
// has buffered but not yet played. Afterwards all response tracking is
// reset.
//
// When no response is actively tracked there is nothing to truncate, and
// only the reset happens.
func (r *Relay) handleInterruption(ctx context.Context) error {
	r.session.MarkInterrupted()
	defer r.session.ResumeStreaming()

	if itemID, startMs, ok := r.session.ActiveResponse(); ok {
		elapsed := r.session.MediaClock() - startMs
		if elapsed < 0 {
			// The clock never runs backwards, so a negative value means a
			// tracking bug; send 0 rather than a negative duration.
			log.Printf("[Relay] Negative elapsed time %dms, clamping to 0", elapsed)
			elapsed = 0
		}

		log.Printf("[Relay] Truncating item %s at %dms", itemID, elapsed)
		if err := r.model.Send(ctx, openairt.ConversationItemTruncateEvent{
			ItemID:       itemID,
			ContentIndex: 0,
			AudioEndMs:   int(elapsed),
		}); err != nil {
			return fmt.Errorf("truncate item: %w", err)
		}

		if err := r.tel.WriteClear(r.session.StreamSid()); err != nil {
			return fmt.Errorf("clear buffered audio: %w", err)
		}
	}

	r.session.ResetResponse()
	return nil
}
