package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/callbridge-ai/callbridge/pkg/outbound"
)

// scheduleCallRequest is the POST /schedule-call body. CallNow selects
// immediate placement; otherwise CallTime must be in the future.
type scheduleCallRequest struct {
	ToPhoneNumber string    `json:"to_phone_number"`
	CallNow       bool      `json:"call_type"`
	CallTime      time.Time `json:"call_time"`
	Language      string    `json:"Language"`
	Accent        string    `json:"Accent"`
	Prompt        string    `json:"prompt"`
}

// handleScheduleCall stores the call's persona prompt under a fresh call ID
// and places the outbound call, now or at the requested time.
func (s *MediaServer) handleScheduleCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req scheduleCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ToPhoneNumber == "" {
		http.Error(w, "to_phone_number is required", http.StatusBadRequest)
		return
	}

	callID := uuid.New().String()
	s.prompts.Put(callID, outbound.BuildPrompt(req.Language, req.Accent, req.Prompt))

	twimlURL := fmt.Sprintf("https://%s/outbound-twiml?call_id=%s", s.config.PublicHost, callID)

	if req.CallNow {
		if _, err := s.dialer.PlaceCall(r.Context(), req.ToPhoneNumber, twimlURL); err != nil {
			log.Printf("[Server] Immediate call failed: %v", err)
			s.prompts.Evict(callID)
			http.Error(w, "failed to place call", http.StatusBadGateway)
			return
		}
		writeMessage(w, fmt.Sprintf("Call initiated immediately to %s", req.ToPhoneNumber))
		return
	}

	to := req.ToPhoneNumber
	err := s.scheduler.Schedule(callID, req.CallTime, func() {
		if _, err := s.dialer.PlaceCall(context.Background(), to, twimlURL); err != nil {
			log.Printf("[Server] Scheduled call failed: %v", err)
			s.prompts.Evict(callID)
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeMessage(w, fmt.Sprintf("Call scheduled to %s at %s",
		req.ToPhoneNumber, req.CallTime.Format(time.RFC3339)))
}

// sessionRequest is the POST /session body.
type sessionRequest struct {
	Prompt string `json:"prompt"`
}

const defaultSessionPrompt = "you are a student and you want to ask me " +
	"philosophical questions about life."

// handleSession mints an ephemeral realtime client credential from the
// provider and returns its secret value, for browser clients that connect
// to the model directly.
func (s *MediaServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		req.Prompt = defaultSessionPrompt
	}

	payload, err := json.Marshal(map[string]string{
		"model":        s.config.Model,
		"voice":        s.config.Voice,
		"instructions": req.Prompt,
	})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	httpReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		s.config.SessionsURL, bytes.NewReader(payload))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.config.OpenAIAPIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[Server] Session creation failed: %v", err)
		http.Error(w, "failed to create session", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "failed to read session response", http.StatusBadGateway)
		return
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[Server] Session creation status %d: %s", resp.StatusCode, body)
		http.Error(w, "failed to create session", resp.StatusCode)
		return
	}

	var created struct {
		ClientSecret struct {
			Value string `json:"value"`
		} `json:"client_secret"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		http.Error(w, "failed to parse session response", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(created.ClientSecret.Value)
}

func writeMessage(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
