// Package server wires the HTTP surface of the call bridge: the telephony
// media-stream websocket, the TwiML webhook for call control, outbound call
// scheduling, and ephemeral client-credential issuance.
//
// Each accepted media-stream connection gets its own relay: the handler
// dials a fresh speech-model session and runs the relay until either side
// disconnects. If the model session cannot be opened the call fails before
// any relay task starts.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/callbridge-ai/callbridge/pkg/model"
	"github.com/callbridge-ai/callbridge/pkg/outbound"
	"github.com/callbridge-ai/callbridge/pkg/promptstore"
	"github.com/callbridge-ai/callbridge/pkg/relay"
	"github.com/callbridge-ai/callbridge/pkg/telephony"
)

const defaultSessionsURL = "https://api.openai.com/v1/realtime/sessions"

// Config holds configuration for MediaServer.
type Config struct {
	// Address is the listen address (e.g. ":5050").
	Address string

	// PublicHost is the externally reachable hostname used to build the
	// wss:// stream URL and the TwiML callback URL.
	PublicHost string

	// OpenAIAPIKey authenticates the speech-model transport.
	OpenAIAPIKey string

	// Model is the realtime model name.
	Model string

	// Voice is the model voice identity (default: "alloy").
	Voice string

	// ReadBufferSize for WebSocket (default: 1024).
	ReadBufferSize int

	// WriteBufferSize for WebSocket (default: 1024).
	WriteBufferSize int

	// SessionsURL overrides the provider endpoint that mints ephemeral
	// client credentials. Used in tests.
	SessionsURL string
}

// ActiveCall tracks one live relay.
type ActiveCall struct {
	Session   *relay.Session
	StartTime time.Time
}

// MediaServer handles telephony media-stream websocket connections and the
// surrounding call-control endpoints.
type MediaServer struct {
	config    Config
	prompts   *promptstore.Store
	dialer    *outbound.Dialer
	scheduler *outbound.Scheduler

	upgrader   websocket.Upgrader
	server     *http.Server
	httpClient *http.Client

	// dialModel opens the speech-model transport for one call. Replaced in
	// tests.
	dialModel func(ctx context.Context, apiKey, modelName string) (relay.ModelTransport, error)

	calls   map[string]*ActiveCall
	callsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a MediaServer.
func New(config Config, prompts *promptstore.Store, dialer *outbound.Dialer, scheduler *outbound.Scheduler) *MediaServer {
	if config.Address == "" {
		config.Address = ":5050"
	}
	if config.Voice == "" {
		config.Voice = "alloy"
	}
	if config.ReadBufferSize == 0 {
		config.ReadBufferSize = 1024
	}
	if config.WriteBufferSize == 0 {
		config.WriteBufferSize = 1024
	}
	if config.SessionsURL == "" {
		config.SessionsURL = defaultSessionsURL
	}

	return &MediaServer{
		config:    config,
		prompts:   prompts,
		dialer:    dialer,
		scheduler: scheduler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialModel: func(ctx context.Context, apiKey, modelName string) (relay.ModelTransport, error) {
			return model.Dial(ctx, apiKey, modelName)
		},
		calls: make(map[string]*ActiveCall),
	}
}

// Start starts the HTTP server.
func (s *MediaServer) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/outbound-twiml", s.handleTwiML)
	mux.HandleFunc("/media-stream/", s.handleMediaStream)
	mux.HandleFunc("/schedule-call", s.handleScheduleCall)
	mux.HandleFunc("/session", s.handleSession)

	s.server = &http.Server{
		Addr:    s.config.Address,
		Handler: mux,
	}

	log.Printf("[Server] Starting on %s", s.config.Address)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[Server] Server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the server gracefully. Cancelling the server context tears
// down every active relay, which closes both of its transports.
func (s *MediaServer) Stop() error {
	log.Printf("[Server] Stopping...")

	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}

	s.wg.Wait()
	log.Printf("[Server] Stopped")
	return nil
}

// handleMediaStream upgrades a telephony media-stream connection and runs
// the relay for the call until it terminates.
func (s *MediaServer) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	callID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/media-stream/"), "/")
	log.Printf("[Server] Media stream connection from %s (call %s)", r.RemoteAddr, callID)

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] WebSocket upgrade failed: %v", err)
		return
	}

	modelConn, err := s.dialModel(s.ctx, s.config.OpenAIAPIKey, s.config.Model)
	if err != nil {
		log.Printf("[Server] Call %s failed: model session: %v", callID, err)
		wsConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "model session unavailable"))
		wsConn.Close()
		s.prompts.Evict(callID)
		return
	}

	rly := relay.New(callID, telephony.NewConn(wsConn), modelConn, s.prompts, relay.Config{
		Voice:      s.config.Voice,
		SpeakFirst: true,
	})

	s.addCall(callID, rly.Session())
	defer s.removeCall(callID)

	if err := rly.Run(s.ctx); err != nil {
		log.Printf("[Server] Call %s failed: %v", callID, err)
	}
}

// handleIndex handles liveness probes on the root path.
func (s *MediaServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"message":"Media stream server is running!"}`)
}

// handleHealth handles health check requests.
func (s *MediaServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.callsMu.RLock()
	callCount := len(s.calls)
	s.callsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","calls":%d}`, callCount)
}

// addCall registers a live call.
func (s *MediaServer) addCall(callID string, session *relay.Session) {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.calls[callID] = &ActiveCall{
		Session:   session,
		StartTime: time.Now(),
	}
}

// removeCall removes a call from tracking.
func (s *MediaServer) removeCall(callID string) {
	s.callsMu.Lock()
	if call, ok := s.calls[callID]; ok {
		delete(s.calls, callID)
		log.Printf("[Server] Call %s removed (duration: %v)",
			callID, time.Since(call.StartTime))
	}
	s.callsMu.Unlock()
}

// GetActiveCall returns a live call by ID, or nil.
func (s *MediaServer) GetActiveCall(callID string) *ActiveCall {
	s.callsMu.RLock()
	defer s.callsMu.RUnlock()
	return s.calls[callID]
}
