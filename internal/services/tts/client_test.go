package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/tts"
)

func TestSynthesizeUsesDefaultVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/synthesize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["voice_id"] != "narrator" || body["text"] != "Hello there" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte(`{"audio_url":"https://cdn.example/a.wav","duration_seconds":4.2}`))
	}))
	defer srv.Close()

	client, err := tts.New(config.Synthesis{Collaborator: config.Collaborator{BaseURL: srv.URL}, DefaultVoice: "narrator"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := client.Synthesize(context.Background(), " Hello there ", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result.AudioURL != "https://cdn.example/a.wav" || result.DurationSeconds != 4.2 {
		t.Fatalf("result = %+v", result)
	}
}

func TestSynthesizeRejectsIncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"audio_url":"","duration_seconds":0}`))
	}))
	defer srv.Close()
	client, _ := tts.New(config.Synthesis{Collaborator: config.Collaborator{BaseURL: srv.URL}})
	if _, err := client.Synthesize(context.Background(), "text", "v1"); !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if _, err := client.Synthesize(context.Background(), "  ", "v1"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
