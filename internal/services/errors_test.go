package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"reelforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrEncoderProcess, "composition", "encode", "ffmpeg exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrEncoderProcess) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"composition", "encode", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindOfMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", services.Wrap(services.ErrValidation, "submit", "validate", "empty scenes", nil), services.KindValidation},
		{"collaborator", services.Wrap(services.ErrCollaborator, "synthesis", "call", "503", nil), services.KindCollaborator},
		{"timeout", services.Wrap(services.ErrTimeout, "avatar_rendering", "call", "deadline", nil), services.KindCollaborator},
		{"encoder", services.Wrap(services.ErrEncoderProcess, "composition", "encode", "exit 1", nil), services.KindEncoderProcess},
		{"interrupted", services.Wrap(services.ErrInterrupted, "", "", "restart", nil), services.KindInterrupted},
		{"plain", errors.New("disk full"), services.KindInternal},
	}
	for _, tc := range cases {
		if got := services.KindOf(tc.err); got != tc.want {
			t.Fatalf("%s: KindOf = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestKindOfPrefersCancellation(t *testing.T) {
	inner := services.Wrap(services.ErrCancelled, "composition", "encode", "cancel requested", context.Canceled)
	err := services.Wrap(services.ErrEncoderProcess, "composition", "encode", "process killed", inner)
	if got := services.KindOf(err); got != services.KindCancellation {
		t.Fatalf("expected cancellation kind, got %q", got)
	}
	if !services.IsCancellation(fmt.Errorf("outer: %w", err)) {
		t.Fatal("expected IsCancellation to see wrapped marker")
	}
}
