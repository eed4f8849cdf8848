package checkpoint

import (
	"bytes"
	"context"
	"os"
	"testing"
)

func TestAutoApprove_AlwaysGo(t *testing.T) {
	d, err := AutoApprove{}.RequestApproval(context.Background(), "continue?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != GO {
		t.Fatalf("expected GO, got %v", d)
	}
}

func TestCLI_NonInteractiveStdinAutoApproves(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	var out bytes.Buffer
	handler := NewCLI(r, &out)
	d, err := handler.RequestApproval(context.Background(), "continue?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != GO {
		t.Fatalf("expected GO for non-interactive stdin, got %v", d)
	}
}
