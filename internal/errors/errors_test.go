package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSocketError_IsNotConnected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "emit error matches sentinel",
			err:  NewSocketError("emit", "write failed", nil),
			want: true,
		},
		{
			name: "wrapped emit error matches sentinel",
			err:  fmt.Errorf("sending: %w", NewSocketError("emit", "write failed", nil)),
			want: true,
		},
		{
			name: "dial error does not match sentinel",
			err:  NewSocketError("dial", "refused", nil),
			want: false,
		},
		{
			name: "plain sentinel",
			err:  ErrNotConnected,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, ErrNotConnected); got != tt.want {
				t.Errorf("errors.Is(err, ErrNotConnected) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransportUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrNotConnected, true},
		{"socket error", NewSocketError("read", "closed", nil), true},
		{"wrapped socket error", fmt.Errorf("x: %w", NewSocketError("emit", "down", nil)), true},
		{"api error", NewAPIError(500, "/chat/", "boom"), false},
		{"plain error", errors.New("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransportUnavailable(tt.err); got != tt.want {
				t.Errorf("IsTransportUnavailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUploadError_NamesFile(t *testing.T) {
	err := NewUploadError("report.pdf", "server returned 415", nil)
	want := `upload of "report.pdf" failed: server returned 415`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewNetworkError("chat", "/chat/", inner)
	if !errors.Is(err, inner) {
		t.Error("NetworkError should unwrap to the inner error")
	}
}

func TestAPIError_Format(t *testing.T) {
	err := NewAPIError(429, "/chat/", "rate limited")
	want := "API error [429] at /chat/: rate limited"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
