package session

import (
	"sync"
	"testing"

	"neurotutor/internal/i18n"
)

func TestLanguageDefaultsUntilSet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if got := s.Language(1, i18n.UZ); got != i18n.UZ {
		t.Fatalf("unset language=%q want uz", got)
	}
	s.MarkActive(1, "alice")
	if got := s.Language(1, i18n.UZ); got != i18n.UZ {
		t.Fatalf("after MarkActive language=%q want uz", got)
	}
	s.SetLanguage(1, i18n.RU)
	if got := s.Language(1, i18n.UZ); got != i18n.RU {
		t.Fatalf("language=%q want ru", got)
	}
}

func TestMarkActiveIdempotent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if !s.MarkActive(5, "bob") {
		t.Fatalf("first MarkActive should report new")
	}
	if s.MarkActive(5, "bobby") {
		t.Fatalf("second MarkActive should not report new")
	}
	if s.Len() != 1 || s.Handle(5) != "bobby" {
		t.Fatalf("len=%d handle=%q", s.Len(), s.Handle(5))
	}

	// Choosing a language alone does not make a user active.
	s.SetLanguage(9, i18n.UZ)
	users := s.ActiveUsers()
	if len(users) != 1 || users[0].UserID != 5 {
		t.Fatalf("active=%+v", users)
	}
}

func TestActiveUsersSnapshot(t *testing.T) {
	t.Parallel()

	s := NewStore()
	for _, id := range []int64{30, 10, 20} {
		s.MarkActive(id, "")
	}
	snap := s.ActiveUsers()
	snap[0].Language = i18n.UZ
	if s.Language(10, i18n.RU) != i18n.RU {
		t.Fatalf("snapshot must not alias store state")
	}
	if snap[0].UserID != 10 || snap[1].UserID != 20 || snap[2].UserID != 30 {
		t.Fatalf("snapshot not sorted: %+v", snap)
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		id := int64(i % 5)
		go func() { defer wg.Done(); s.MarkActive(id, "u") }()
		go func() { defer wg.Done(); s.SetLanguage(id, i18n.UZ) }()
		go func() { defer wg.Done(); _ = s.ActiveUsers() }()
	}
	wg.Wait()
	if s.Len() != 5 {
		t.Fatalf("len=%d want 5", s.Len())
	}
	for i := int64(0); i < 5; i++ {
		if s.Language(i, i18n.RU) != i18n.UZ {
			t.Fatalf("user %d lost language", i)
		}
	}
}
