package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("missing key: ok = %v, err = %v", ok, err)
	}

	if err := s.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "theme", "light"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	v, ok, err := s.Get(ctx, "theme")
	if err != nil || !ok {
		t.Fatalf("Get: ok = %v, err = %v", ok, err)
	}
	if v != "light" {
		t.Errorf("value = %q, want light (last write wins)", v)
	}
}

func TestMessagesChronological(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	for i, content := range []string{"first", "second", "third"} {
		_, err := s.SaveMessage(ctx, Message{
			SessionID: "s1",
			Role:      "user",
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}
	s.SaveMessage(ctx, Message{SessionID: "s2", Role: "user", Content: "other session"})

	msgs, err := s.Messages(ctx, "s1")
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].Content, want)
		}
	}
	if msgs[0].ID == "" {
		t.Error("ID should be assigned on save")
	}
}

func TestSaveMessageKeepsReasoning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveMessage(ctx, Message{
		SessionID: "s1",
		Role:      "assistant",
		Content:   "42",
		Reasoning: "considered the question deeply",
	})
	if err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	msgs, _ := s.Messages(ctx, "s1")
	if len(msgs) != 1 || msgs[0].Reasoning != "considered the question deeply" {
		t.Errorf("messages = %+v", msgs)
	}
	if msgs[0].ID != saved.ID {
		t.Errorf("ID mismatch: %q vs %q", msgs[0].ID, saved.ID)
	}
}

func TestSessionsMostRecentFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	s.SaveMessage(ctx, Message{SessionID: "old", Role: "user", Content: "a", CreatedAt: base})
	s.SaveMessage(ctx, Message{SessionID: "new", Role: "user", Content: "b", CreatedAt: base.Add(time.Hour)})
	s.SaveMessage(ctx, Message{SessionID: "old", Role: "user", Content: "c", CreatedAt: base.Add(2 * time.Hour)})

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != "old" || sessions[1] != "new" {
		t.Errorf("sessions = %v, want [old new]", sessions)
	}
}

func TestDeleteSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SaveMessage(ctx, Message{SessionID: "gone", Role: "user", Content: "x"})
	s.SaveMessage(ctx, Message{SessionID: "kept", Role: "user", Content: "y"})

	if err := s.DeleteSession(ctx, "gone"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	if msgs, _ := s.Messages(ctx, "gone"); len(msgs) != 0 {
		t.Errorf("deleted session still has %d messages", len(msgs))
	}
	if msgs, _ := s.Messages(ctx, "kept"); len(msgs) != 1 {
		t.Errorf("other session lost messages: %d", len(msgs))
	}

	// Deleting again is a no-op.
	if err := s.DeleteSession(ctx, "gone"); err != nil {
		t.Errorf("second delete errored: %v", err)
	}
}
