package server

import (
	"html/template"
	"log"
	"net/http"
)

// twimlTemplate greets the callee, then connects the call's audio to the
// media-stream websocket for the given call ID.
const twimlTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Say>Hello! You are now connected to an A. I. voice assistant.</Say>
    <Pause length="1"/>
    <Say>O.K. you can start talking!</Say>
    <Connect>
        <Stream url="wss://{{.Host}}/media-stream/{{.CallID}}" />
    </Connect>
</Response>`

// handleTwiML serves call-control instructions. The telephony provider
// fetches this URL when the outbound call is answered; the call_id query
// parameter ties the resulting media stream back to its stored prompt.
func (s *MediaServer) handleTwiML(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	log.Printf("[Server] TwiML request from %s (call %s)", r.RemoteAddr, callID)

	host := s.config.PublicHost
	if host == "" {
		host = r.Host
	}

	tmpl, err := template.New("twiml").Parse(twimlTemplate)
	if err != nil {
		log.Printf("[Server] Failed to parse TwiML template: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		Host   string
		CallID string
	}{
		Host:   host,
		CallID: callID,
	}

	w.Header().Set("Content-Type", "application/xml")
	if err := tmpl.Execute(w, data); err != nil {
		log.Printf("[Server] Failed to execute TwiML template: %v", err)
	}
}
