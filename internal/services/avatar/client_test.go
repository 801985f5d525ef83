package avatar_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/avatar"
)

func TestRenderPostsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req avatar.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.AvatarID != "anna" || req.DurationSeconds != 5 || req.Background == nil || req.Background.Color != "#000000" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"video_url":"https://cdn.example/scene.mp4","lip_sync_accuracy":0.92}`))
	}))
	defer srv.Close()

	client, err := avatar.New(config.Avatar{Collaborator: config.Collaborator{BaseURL: srv.URL}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := client.Render(context.Background(), avatar.Request{
		AvatarID:        "anna",
		AudioURL:        "https://cdn.example/a.wav",
		DurationSeconds: 5,
		Background:      &avatar.Background{Color: "#000000"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if result.VideoURL != "https://cdn.example/scene.mp4" || result.LipSyncAccuracy != 0.92 {
		t.Fatalf("result = %+v", result)
	}
}

func TestRenderValidatesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"video_url":"x.mp4","lip_sync_accuracy":3}`))
	}))
	defer srv.Close()
	client, _ := avatar.New(config.Avatar{Collaborator: config.Collaborator{BaseURL: srv.URL}})
	_, err := client.Render(context.Background(), avatar.Request{AvatarID: "a", AudioURL: "u", DurationSeconds: 1})
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	_, err = client.Render(context.Background(), avatar.Request{AvatarID: "a"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
