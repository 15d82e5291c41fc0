package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(503, "database connection unavailable")
	if err.GetCode() != 503 {
		t.Errorf("expected code 503, got %d", err.GetCode())
	}
	if err.GetMessage() != "database connection unavailable" {
		t.Errorf("unexpected message %q", err.GetMessage())
	}
}

func TestWithMetadataKeepsIdentity(t *testing.T) {
	sentinel := Unavailable("client unavailable")

	if same := sentinel.WithMetadata(nil); same != sentinel {
		t.Error("WithMetadata with empty map should return same instance")
	}

	err := sentinel.WithField("state", "closed")
	if err == sentinel {
		t.Fatal("WithField should return a new instance")
	}
	if err.GetMetadata()["state"] != "closed" {
		t.Errorf("metadata not set: %v", err.GetMetadata())
	}
	if len(sentinel.GetMetadata()) != 0 {
		t.Error("sentinel must not be mutated")
	}
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should match on code and message")
	}
}

func TestWithCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Unavailable("connection test failed").WithCause(cause)

	if err.GetCause() != cause {
		t.Error("cause not set correctly")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through errors.Is")
	}
}

func TestIsAcrossWrapping(t *testing.T) {
	sentinel := Gone("manager closed")
	wrapped := fmt.Errorf("reset: %w", sentinel.WithField("op", "reset"))

	if !errors.Is(wrapped, sentinel) {
		t.Error("expected match through fmt wrapping")
	}
	if errors.Is(wrapped, Gone("something else")) {
		t.Error("different message must not match")
	}
}

func TestFromError(t *testing.T) {
	stdErr := errors.New("standard error")
	converted := FromError(stdErr)
	if converted.GetCode() != UnknownCode {
		t.Errorf("expected code %d, got %d", UnknownCode, converted.GetCode())
	}
	if !errors.Is(converted, stdErr) {
		t.Error("converted error should keep the original as cause")
	}

	existing := NotFound("not found")
	if FromError(fmt.Errorf("ctx: %w", existing)) != existing {
		t.Error("FromError should return the *Error found in the chain")
	}

	if FromError(nil) != nil {
		t.Error("nil in, nil out")
	}
}

func TestCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("x"), UnknownCode},
		{"typed", Unavailable("x"), 503},
		{"wrapped", fmt.Errorf("a: %w", Gone("x")), 410},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Code(tc.err); got != tc.want {
				t.Errorf("Code() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, 500, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func BenchmarkErrorString(b *testing.B) {
	err := Unavailable("database connection unavailable").
		WithMetadata(map[string]string{"state": "closed"}).
		WithCause(errors.New("sql: database is closed"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = err.Error()
	}
}
