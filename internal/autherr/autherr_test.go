package autherr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"classified", New(KindStateMismatch, "state ABC != XYZ"), KindStateMismatch},
		{"wrapped classified", fmt.Errorf("outer: %w", New(KindTimeout, "")), KindTimeout},
		{"unclassified", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindNetworkFailure, "token endpoint unreachable", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not found in chain")
	}

	if err.Error() == "" {
		t.Error("Error() returned empty string")
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := Wrap(KindInvalidGrant, "code already redeemed", errors.New("http 400"))

	if !errors.Is(err, New(KindInvalidGrant, "")) {
		t.Error("errors.Is should match on Kind alone")
	}
	if errors.Is(err, New(KindInvalidClient, "")) {
		t.Error("errors.Is must not match a different Kind")
	}
}
