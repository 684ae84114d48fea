// Package prompts holds the prompt-library domain model and its storage
// interface. Persistence is delegated to the hosted document database; the
// in-memory implementation backs tests and local development.
package prompts

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the prompt (or preferences document) does not exist
// for the given user.
var ErrNotFound = errors.New("prompts: not found")

// Prompt is one reusable text prompt owned by a single user.
type Prompt struct {
	ID        string    `json:"id" firestore:"id"`
	UserID    string    `json:"-" firestore:"user_id"`
	Title     string    `json:"title" firestore:"title"`
	Body      string    `json:"body" firestore:"body"`
	Tags      []string  `json:"tags,omitempty" firestore:"tags"`
	CreatedAt time.Time `json:"createdAt" firestore:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updated_at"`
}

// Preferences are per-user UI and ordering preferences.
type Preferences struct {
	UserID      string   `json:"-" firestore:"user_id"`
	DefaultTags []string `json:"defaultTags,omitempty" firestore:"default_tags"`
	SortOrder   string   `json:"sortOrder,omitempty" firestore:"sort_order"`
}

// Store is the persistence surface consumed by the HTTP and MCP layers.
// All operations are scoped to a single user; implementations must never
// return another user's documents.
type Store interface {
	List(ctx context.Context, userID string) ([]*Prompt, error)
	Get(ctx context.Context, userID, id string) (*Prompt, error)
	Put(ctx context.Context, p *Prompt) error
	Delete(ctx context.Context, userID, id string) error

	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	PutPreferences(ctx context.Context, prefs *Preferences) error
}
