package conversation

import (
	"testing"

	"babas/internal/domain"
)

func TestStore_AppendKeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	s.Append(NewUserMessage("A"))
	s.Append(NewModelMessage("B", false))
	s.Append(NewUserMessage("C"))

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	want := []string{"A", "B", "C"}
	for i, m := range all {
		if m.Text != want[i] {
			t.Fatalf("message %d: expected %q, got %q", i, want[i], m.Text)
		}
	}
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append(NewUserMessage("original"))

	all := s.All()
	all[0].Text = "changed"

	if got := s.All()[0].Text; got != "original" {
		t.Fatalf("store mutated through All(): %q", got)
	}
}

func TestStore_TurnsPreserveRoles(t *testing.T) {
	s := NewStore()
	s.Append(NewUserMessage("Oi"))
	s.Append(NewModelMessage("Olá!", false))

	turns := s.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0] != (domain.Turn{Role: domain.RoleUser, Text: "Oi"}) {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1] != (domain.Turn{Role: domain.RoleModel, Text: "Olá!"}) {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		m := NewUserMessage("x")
		if m.ID == "" {
			t.Fatal("empty message ID")
		}
		if seen[m.ID] {
			t.Fatalf("duplicate ID %s", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestNewModelMessage_ErrorFlag(t *testing.T) {
	if m := NewModelMessage("ok", false); m.IsError || m.Role != domain.RoleModel {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m := NewModelMessage("falhou", true); !m.IsError {
		t.Fatal("expected IsError=true")
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	s.Append(NewUserMessage("x"))
	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("expected empty store after reset, got %d", s.Len())
	}
}
