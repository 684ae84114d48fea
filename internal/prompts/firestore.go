package prompts

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection       = "users"
	promptsCollection     = "prompts"
	preferencesCollection = "preferences"
)

// FirestoreStore persists prompts under users/{uid}/prompts/{id} and
// preferences under preferences/{uid}.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an existing Firestore client. The caller owns the
// client's lifecycle.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) promptDoc(userID, id string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(userID).Collection(promptsCollection).Doc(id)
}

func (s *FirestoreStore) List(ctx context.Context, userID string) ([]*Prompt, error) {
	iter := s.client.Collection(usersCollection).Doc(userID).Collection(promptsCollection).
		OrderBy("updated_at", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var out []*Prompt
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("prompts: list: %w", err)
		}
		var p Prompt
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("prompts: decode %s: %w", doc.Ref.ID, err)
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *FirestoreStore) Get(ctx context.Context, userID, id string) (*Prompt, error) {
	doc, err := s.promptDoc(userID, id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("prompts: get: %w", err)
	}
	var p Prompt
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("prompts: decode %s: %w", id, err)
	}
	return &p, nil
}

func (s *FirestoreStore) Put(ctx context.Context, p *Prompt) error {
	if p.UserID == "" || p.ID == "" {
		return fmt.Errorf("prompts: put: user id and prompt id are required")
	}
	if _, err := s.promptDoc(p.UserID, p.ID).Set(ctx, p); err != nil {
		return fmt.Errorf("prompts: put: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, userID, id string) error {
	// Existence check first so callers can 404; Firestore deletes are
	// otherwise idempotent no-ops.
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if _, err := s.promptDoc(userID, id).Delete(ctx); err != nil {
		return fmt.Errorf("prompts: delete: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	doc, err := s.client.Collection(preferencesCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("prompts: get preferences: %w", err)
	}
	var prefs Preferences
	if err := doc.DataTo(&prefs); err != nil {
		return nil, fmt.Errorf("prompts: decode preferences: %w", err)
	}
	return &prefs, nil
}

func (s *FirestoreStore) PutPreferences(ctx context.Context, prefs *Preferences) error {
	if prefs.UserID == "" {
		return fmt.Errorf("prompts: put preferences: user id is required")
	}
	if _, err := s.client.Collection(preferencesCollection).Doc(prefs.UserID).Set(ctx, prefs); err != nil {
		return fmt.Errorf("prompts: put preferences: %w", err)
	}
	return nil
}

var _ Store = (*FirestoreStore)(nil)
