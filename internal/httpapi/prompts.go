package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/promptvault/promptvault/internal/drafts"
	"github.com/promptvault/promptvault/internal/prompts"
)

type promptRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

func (h *Handler) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.store.List(ctx, identity(r).ID)
	if err != nil {
		h.log.ErrorContext(ctx, "prompts.list.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
		return
	}
	if items == nil {
		items = []*prompts.Prompt{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.store.Get(ctx, identity(r).ID, r.PathValue("id"))
	if errors.Is(err, prompts.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "prompt not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "prompts.get.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req promptRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Title == "" || req.Body == "" {
		writeJSONError(w, http.StatusBadRequest, "title and body are required")
		return
	}
	now := time.Now().UTC()
	p := &prompts.Prompt{
		ID:        uuid.NewString(),
		UserID:    identity(r).ID,
		Title:     req.Title,
		Body:      req.Body,
		Tags:      req.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.Put(ctx, p); err != nil {
		h.log.ErrorContext(ctx, "prompts.create.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity(r).ID
	var req promptRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Title == "" || req.Body == "" {
		writeJSONError(w, http.StatusBadRequest, "title and body are required")
		return
	}
	prev, err := h.store.Get(ctx, userID, r.PathValue("id"))
	if errors.Is(err, prompts.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "prompt not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "prompts.update.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
		return
	}
	p := &prompts.Prompt{
		ID:        prev.ID,
		UserID:    userID,
		Title:     req.Title,
		Body:      req.Body,
		Tags:      req.Tags,
		CreatedAt: prev.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.store.Put(ctx, p); err != nil {
		h.log.ErrorContext(ctx, "prompts.update.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.store.Delete(ctx, identity(r).ID, r.PathValue("id"))
	if errors.Is(err, prompts.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "prompt not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "prompts.delete.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// promptExport is the portable backup format.
type promptExport struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exportedAt"`
	Prompts    []*prompts.Prompt `json:"prompts"`
}

func (h *Handler) handleExportPrompts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.store.List(ctx, identity(r).ID)
	if err != nil {
		h.log.ErrorContext(ctx, "prompts.export.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
		return
	}
	if items == nil {
		items = []*prompts.Prompt{}
	}
	writeJSON(w, http.StatusOK, promptExport{
		Version:    1,
		ExportedAt: time.Now().UTC(),
		Prompts:    items,
	})
}

func (h *Handler) handleImportPrompts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity(r).ID
	var req struct {
		Prompts []promptRequest `json:"prompts"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	imported := 0
	now := time.Now().UTC()
	for _, item := range req.Prompts {
		if item.Title == "" || item.Body == "" {
			continue
		}
		p := &prompts.Prompt{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     item.Title,
			Body:      item.Body,
			Tags:      item.Tags,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := h.store.Put(ctx, p); err != nil {
			h.log.ErrorContext(ctx, "prompts.import.fail", slog.String("err", err.Error()))
			writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
			return
		}
		imported++
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
}

func (h *Handler) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity(r).ID
	prefs, err := h.store.GetPreferences(ctx, userID)
	if errors.Is(err, prompts.ErrNotFound) {
		writeJSON(w, http.StatusOK, &prompts.Preferences{UserID: userID})
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "preferences.get.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		DefaultTags []string `json:"defaultTags,omitempty"`
		SortOrder   string   `json:"sortOrder,omitempty"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	prefs := &prompts.Preferences{
		UserID:      identity(r).ID,
		DefaultTags: req.DefaultTags,
		SortOrder:   req.SortOrder,
	}
	if err := h.store.PutPreferences(ctx, prefs); err != nil {
		h.log.ErrorContext(ctx, "preferences.put.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "prompt store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.drafts == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "drafts are not configured")
		return
	}
	d, err := h.drafts.Load(ctx, identity(r).ID)
	if errors.Is(err, drafts.ErrNoDraft) {
		writeJSONError(w, http.StatusNotFound, "no draft")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "draft.get.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "draft store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.drafts == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "drafts are not configured")
		return
	}
	var req struct {
		Title string   `json:"title"`
		Body  string   `json:"body"`
		Tags  []string `json:"tags,omitempty"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	d := &drafts.Draft{
		Title:   req.Title,
		Body:    req.Body,
		Tags:    req.Tags,
		SavedAt: time.Now().UTC(),
	}
	if err := h.drafts.Save(ctx, identity(r).ID, d); err != nil {
		h.log.ErrorContext(ctx, "draft.put.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "draft store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.drafts == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "drafts are not configured")
		return
	}
	if err := h.drafts.Discard(ctx, identity(r).ID); err != nil {
		h.log.ErrorContext(ctx, "draft.delete.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "draft store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
