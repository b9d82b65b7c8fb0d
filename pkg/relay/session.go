// Package relay implements the duplex audio relay between a telephony
// media stream and a speech-model realtime session: audio forwarding in both
// directions, playback-mark tracking, and barge-in truncation.
package relay

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a call session.
type State int

const (
	StateAwaitingStart State = iota
	StateStreaming
	StateInterrupted
	StateTerminated
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting_start"
	case StateStreaming:
		return "streaming"
	case StateInterrupted:
		return "interrupted"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session is the shared mutable record for one call. Both relay tasks hold a
// reference to it.
//
// Field ownership: mediaClockMs is written only by the inbound task and held
// in an atomic so the outbound task can cross-read it without a lock; a
// momentarily stale value is acceptable since truncation math only needs the
// clock from the most recent media frame processed before the read.
// streamSid and the state are written by the inbound task; response tracking
// (assistant item, response anchor, mark queue) is written by the outbound
// task, except that mark acknowledgments pop the queue from the inbound
// task, so all of these cold-path fields share one mutex.
type Session struct {
	callID string

	mediaClockMs atomic.Int64

	mu              sync.Mutex
	streamSid       string
	state           State
	assistantItemID string
	responseStartMs int64
	responseStarted bool
	markQueue       []string
}

// NewSession creates a session for a call awaiting its stream start event.
func NewSession(callID string) *Session {
	return &Session{callID: callID, state: StateAwaitingStart}
}

// CallID returns the call identifier the session was created with.
func (s *Session) CallID() string {
	return s.callID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginStream records the telephony stream identity and resets per-stream
// tracking: the media clock restarts at zero and any response tracking from
// a previous stream is dropped.
func (s *Session) BeginStream(streamSid string) {
	s.mediaClockMs.Store(0)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSid = streamSid
	s.assistantItemID = ""
	s.responseStarted = false
	s.responseStartMs = 0
	s.markQueue = nil
	if s.state != StateTerminated {
		s.state = StateStreaming
	}
}

// StreamSid returns the telephony stream identifier, or "" before the start
// event arrives.
func (s *Session) StreamSid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSid
}

// ObserveMediaClock applies a caller-reported timestamp to the media clock.
// It returns false without applying the value when the timestamp would move
// the clock backwards.
func (s *Session) ObserveMediaClock(ms int64) bool {
	if ms < s.mediaClockMs.Load() {
		return false
	}
	s.mediaClockMs.Store(ms)
	return true
}

// MediaClock returns the last caller-reported media timestamp in
// milliseconds.
func (s *Session) MediaClock() int64 {
	return s.mediaClockMs.Load()
}

// AnchorResponse captures the current media clock as the start of the
// in-flight response. The anchor is set at most once per response lifecycle;
// later chunks of the same response leave it unchanged.
func (s *Session) AnchorResponse() {
	clock := s.mediaClockMs.Load()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.responseStarted {
		return
	}
	s.responseStarted = true
	s.responseStartMs = clock
}

// SetAssistantItem records the item identifier of the in-flight response.
func (s *Session) SetAssistantItem(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistantItemID = itemID
}

// AssistantItem returns the item identifier of the in-flight response, or ""
// when no response is being played back.
func (s *Session) AssistantItem() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assistantItemID
}

// ActiveResponse reports the in-flight response: its item identifier and the
// media-clock value at which it started playing. ok is false when no
// response is tracked.
func (s *Session) ActiveResponse() (itemID string, startMs int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.responseStarted || s.assistantItemID == "" {
		return "", 0, false
	}
	return s.assistantItemID, s.responseStartMs, true
}

// PushMark appends a playback acknowledgment token, one per forwarded audio
// chunk.
func (s *Session) PushMark(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markQueue = append(s.markQueue, name)
}

// AckMark pops the oldest pending token. It returns false when the queue is
// empty, which indicates a duplicate or out-of-order acknowledgment;
// tolerated rather than treated as an error.
func (s *Session) AckMark() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.markQueue) == 0 {
		return false
	}
	s.markQueue = s.markQueue[1:]
	return true
}

// PendingMarks returns the number of forwarded chunks not yet acknowledged.
func (s *Session) PendingMarks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markQueue)
}

// ResetResponse drops all response tracking: the mark queue, the assistant
// item, and the response anchor.
func (s *Session) ResetResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markQueue = nil
	s.assistantItemID = ""
	s.responseStarted = false
	s.responseStartMs = 0
}

// MarkInterrupted flags the transient interruption-handling state.
func (s *Session) MarkInterrupted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStreaming {
		s.state = StateInterrupted
	}
}

// ResumeStreaming leaves the transient interruption state.
func (s *Session) ResumeStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInterrupted {
		s.state = StateStreaming
	}
}

// Terminate marks the session as over. Terminated is sticky.
func (s *Session) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateTerminated
}
