package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"segrun/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrLaunch, "worker", "start", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrLaunch) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"worker", "start", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Status
	}{
		{"nil", nil, services.StatusSucceeded},
		{"canceled", fmt.Errorf("stop: %w", services.ErrCanceled), services.StatusCanceled},
		{"validation", services.Wrap(services.ErrValidation, "split", "", "bad interval", nil), services.StatusInvalid},
		{"resource", services.Wrap(services.ErrResource, "worker", "mkdir", "", errors.New("disk full")), services.StatusFailed},
		{"detection", services.Wrap(services.ErrDetection, "labels", "", "", nil), services.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.FailureStatus(tt.err); got != tt.want {
				t.Fatalf("FailureStatus = %s, want %s", got, tt.want)
			}
		})
	}
}
