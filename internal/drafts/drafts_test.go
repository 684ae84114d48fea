package drafts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{KeyPrefix: "pv:drafts:test:", TTL: time.Minute})
	if err != nil {
		t.Skipf("skipping draft store tests: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDrafts_SaveLoadDiscard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := "user-" + uuid.NewString()

	if _, err := s.Load(ctx, userID); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("load before save: err = %v, want ErrNoDraft", err)
	}

	d := &Draft{
		Title:   "wip",
		Body:    "half-written prompt",
		Tags:    []string{"work"},
		SavedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.Save(ctx, userID, d); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, userID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Title != d.Title || got.Body != d.Body {
		t.Errorf("loaded %+v", got)
	}
	if !got.SavedAt.Equal(d.SavedAt) {
		t.Errorf("savedAt = %v, want %v", got.SavedAt, d.SavedAt)
	}

	if err := s.Discard(ctx, userID); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := s.Load(ctx, userID); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("load after discard: err = %v, want ErrNoDraft", err)
	}
}

func TestDrafts_DiscardMissingIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.Discard(context.Background(), "user-"+uuid.NewString()); err != nil {
		t.Fatalf("discard of missing draft: %v", err)
	}
}

func TestDrafts_OverwriteReplacesDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := "user-" + uuid.NewString()

	_ = s.Save(ctx, userID, &Draft{Title: "v1", Body: "one", SavedAt: time.Now()})
	if err := s.Save(ctx, userID, &Draft{Title: "v2", Body: "two", SavedAt: time.Now()}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := s.Load(ctx, userID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Title != "v2" {
		t.Errorf("title = %q, want v2", got.Title)
	}
}

func TestDrafts_UserIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := "user-" + uuid.NewString()
	b := "user-" + uuid.NewString()

	_ = s.Save(ctx, a, &Draft{Title: "mine", Body: "x", SavedAt: time.Now()})
	if _, err := s.Load(ctx, b); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("other user's load: err = %v, want ErrNoDraft", err)
	}
}
