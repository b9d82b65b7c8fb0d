package outbound

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialer_PlaceCall(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotURL string
	var gotUser, gotPass string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.FormValue("To")
		gotFrom = r.FormValue("From")
		gotURL = r.FormValue("Url")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"CA123","status":"queued"}`))
	}))
	defer srv.Close()

	d := NewDialer(DialerConfig{
		AccountSID: "AC42",
		AuthToken:  "token",
		FromNumber: "+15550001111",
		BaseURL:    srv.URL,
	})

	sid, err := d.PlaceCall(context.Background(), "+15552223333",
		"https://example.com/outbound-twiml?call_id=abc")
	require.NoError(t, err)

	assert.Equal(t, "CA123", sid)
	assert.Equal(t, "/2010-04-01/Accounts/AC42/Calls.json", gotPath)
	assert.Equal(t, "AC42", gotUser)
	assert.Equal(t, "token", gotPass)
	assert.Equal(t, "+15552223333", gotTo)
	assert.Equal(t, "+15550001111", gotFrom)
	assert.Equal(t, "https://example.com/outbound-twiml?call_id=abc", gotURL)
}

func TestDialer_PlaceCallProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"authentication failed"}`))
	}))
	defer srv.Close()

	d := NewDialer(DialerConfig{
		AccountSID: "AC42",
		AuthToken:  "bad",
		FromNumber: "+15550001111",
		BaseURL:    srv.URL,
	})

	_, err := d.PlaceCall(context.Background(), "+15552223333", "https://example.com/twiml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Spanish", "Castilian", "confirm tomorrow's appointment")

	assert.Contains(t, prompt, "Spanish")
	assert.Contains(t, prompt, "Castilian")
	assert.Contains(t, prompt, "confirm tomorrow's appointment")
}
