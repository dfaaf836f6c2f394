package rigerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{"configuration", Configuration("no armature set"), ErrConfiguration, "no armature set"},
		{"validation", Validation("bone %q has no parent", "shin"), ErrValidation, `bone "shin" has no parent`},
		{"degenerate", Degenerate("empty band"), ErrGeometryDegenerate, "empty band"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			wrapped := fmt.Errorf("generate: %w", tt.err)
			if !errors.Is(wrapped, tt.kind) {
				t.Errorf("kind lost after wrapping")
			}
			if got := Message(tt.err); got != tt.msg {
				t.Errorf("Message() = %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestMessagePlainError(t *testing.T) {
	if got := Message(errors.New("boom")); got != "boom" {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q", got)
	}
}
