package types_test

import (
	"testing"

	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

func TestStreamStatus(t *testing.T) {
	t.Run("valid statuses", func(t *testing.T) {
		for _, s := range types.AllStreamStatuses() {
			if !s.IsValid() {
				t.Errorf("expected %s to be valid", s)
			}
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		if types.StreamStatus("running").IsValid() {
			t.Error("expected running to be invalid")
		}
		if types.StreamStatus("").IsValid() {
			t.Error("expected empty status to be invalid")
		}
	})

	t.Run("terminal statuses", func(t *testing.T) {
		if !types.StreamStatusComplete.IsTerminal() {
			t.Error("complete should be terminal")
		}
		if !types.StreamStatusErrored.IsTerminal() {
			t.Error("errored should be terminal")
		}
		if types.StreamStatusPending.IsTerminal() {
			t.Error("pending should not be terminal")
		}
		if types.StreamStatusStreaming.IsTerminal() {
			t.Error("streaming should not be terminal")
		}
	})

	t.Run("normalize empty to pending", func(t *testing.T) {
		if got := types.StreamStatus("").Normalize(); got != types.StreamStatusPending {
			t.Errorf("expected pending, got %s", got)
		}
		if got := types.StreamStatusComplete.Normalize(); got != types.StreamStatusComplete {
			t.Errorf("expected complete, got %s", got)
		}
	})

	t.Run("wire form is lowercase", func(t *testing.T) {
		want := []string{"pending", "streaming", "complete", "errored"}
		for i, s := range types.AllStreamStatuses() {
			if s.String() != want[i] {
				t.Errorf("expected %s, got %s", want[i], s)
			}
		}
	})

	t.Run("parse", func(t *testing.T) {
		status, err := types.ParseStreamStatus("streaming")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != types.StreamStatusStreaming {
			t.Errorf("expected streaming, got %s", status)
		}

		if _, err := types.ParseStreamStatus("bogus"); err == nil {
			t.Error("expected error for bogus status")
		}
	})
}

func TestMessageRole(t *testing.T) {
	for _, r := range types.AllMessageRoles() {
		if !r.IsValid() {
			t.Errorf("expected %s to be valid", r)
		}
	}

	if types.MessageRoleUser.String() != "user" || types.MessageRoleAssistant.String() != "assistant" {
		t.Error("expected lowercase role values")
	}

	if types.MessageRole("system").IsValid() {
		t.Error("expected system to be invalid")
	}

	role, err := types.ParseMessageRole("user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != types.MessageRoleUser {
		t.Errorf("expected user, got %s", role)
	}
}

func TestStreamID(t *testing.T) {
	t.Run("new IDs are unique and valid", func(t *testing.T) {
		seen := make(map[types.StreamID]bool)
		for i := 0; i < 100; i++ {
			id := types.NewStreamID()
			if err := id.Validate(); err != nil {
				t.Fatalf("generated ID failed validation: %v", err)
			}
			if seen[id] {
				t.Fatalf("duplicate ID generated: %s", id)
			}
			seen[id] = true
		}
	})

	t.Run("empty ID is invalid", func(t *testing.T) {
		if err := types.StreamID("").Validate(); err == nil {
			t.Error("expected error for empty ID")
		}
	})

	t.Run("malformed ID is invalid", func(t *testing.T) {
		if err := types.StreamID("not-a-uuid").Validate(); err == nil {
			t.Error("expected error for malformed ID")
		}
	})
}
