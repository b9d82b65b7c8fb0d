package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_MediaClockMonotonic(t *testing.T) {
	s := NewSession("call-1")
	s.BeginStream("SS1")

	assert.True(t, s.ObserveMediaClock(100))
	assert.True(t, s.ObserveMediaClock(250))
	assert.EqualValues(t, 250, s.MediaClock())

	// A regression leaves the clock unchanged.
	assert.False(t, s.ObserveMediaClock(120))
	assert.EqualValues(t, 250, s.MediaClock())

	// Equal timestamps are not a regression.
	assert.True(t, s.ObserveMediaClock(250))
	assert.EqualValues(t, 250, s.MediaClock())
}

func TestSession_BeginStreamResets(t *testing.T) {
	s := NewSession("call-1")
	s.BeginStream("SS1")
	s.ObserveMediaClock(500)
	s.AnchorResponse()
	s.SetAssistantItem("item-1")
	s.PushMark("responsePart")

	s.BeginStream("SS2")

	assert.Equal(t, "SS2", s.StreamSid())
	assert.EqualValues(t, 0, s.MediaClock())
	assert.Equal(t, "", s.AssistantItem())
	assert.Equal(t, 0, s.PendingMarks())
	_, _, ok := s.ActiveResponse()
	assert.False(t, ok)
	assert.Equal(t, StateStreaming, s.State())
}

func TestSession_MarkQueueFIFO(t *testing.T) {
	s := NewSession("call-1")

	const pushed = 5
	for i := 0; i < pushed; i++ {
		s.PushMark("responsePart")
	}

	for acked := 1; acked <= 3; acked++ {
		assert.True(t, s.AckMark())
		assert.Equal(t, pushed-acked, s.PendingMarks())
	}
	assert.Equal(t, 2, s.PendingMarks())
}

func TestSession_AckMarkEmptyQueue(t *testing.T) {
	s := NewSession("call-1")
	assert.False(t, s.AckMark())
	assert.Equal(t, 0, s.PendingMarks())
}

func TestSession_AnchorResponseSetOnce(t *testing.T) {
	s := NewSession("call-1")
	s.BeginStream("SS1")
	s.ObserveMediaClock(1000)

	s.AnchorResponse()
	s.SetAssistantItem("item-1")

	// Later chunks of the same response must not move the anchor.
	s.ObserveMediaClock(1450)
	s.AnchorResponse()

	itemID, startMs, ok := s.ActiveResponse()
	assert.True(t, ok)
	assert.Equal(t, "item-1", itemID)
	assert.EqualValues(t, 1000, startMs)
}

func TestSession_ResetResponse(t *testing.T) {
	s := NewSession("call-1")
	s.BeginStream("SS1")
	s.AnchorResponse()
	s.SetAssistantItem("item-1")
	s.PushMark("responsePart")

	s.ResetResponse()

	assert.Equal(t, 0, s.PendingMarks())
	assert.Equal(t, "", s.AssistantItem())
	_, _, ok := s.ActiveResponse()
	assert.False(t, ok)

	// A new anchor after the reset captures the current clock.
	s.ObserveMediaClock(2000)
	s.AnchorResponse()
	s.SetAssistantItem("item-2")
	_, startMs, ok := s.ActiveResponse()
	assert.True(t, ok)
	assert.EqualValues(t, 2000, startMs)
}

func TestSession_TerminateSticky(t *testing.T) {
	s := NewSession("call-1")
	s.BeginStream("SS1")
	s.Terminate()

	s.MarkInterrupted()
	assert.Equal(t, StateTerminated, s.State())
	s.ResumeStreaming()
	assert.Equal(t, StateTerminated, s.State())
	s.BeginStream("SS2")
	assert.Equal(t, StateTerminated, s.State())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateAwaitingStart, "awaiting_start"},
		{StateStreaming, "streaming"},
		{StateInterrupted, "interrupted"},
		{StateTerminated, "terminated"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}
