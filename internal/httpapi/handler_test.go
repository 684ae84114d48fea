package httpapi

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/promptvault/promptvault/internal/authn"
	"github.com/promptvault/promptvault/internal/prompts"
)

type apiFixture struct {
	handler *Handler
	store   *prompts.MemoryStore
	widget  *authn.WidgetCodec
	cookies *authn.CookieVerifier
}

func genRSA(t *testing.T) (*rsa.PrivateKey, string, []byte) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	kid := "test-key"
	jwk := jose.JSONWebKey{Key: &pk.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}
	set := struct {
		Keys []jose.JSONWebKey `json:"keys"`
	}{Keys: []jose.JSONWebKey{jwk}}
	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return pk, kid, b
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	_, _, jwks := genRSA(t)
	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(jwks)
	}))
	t.Cleanup(jwksSrv.Close)

	sessions, err := authn.NewSessionValidator("https://idp.example.com", jwksSrv.URL, authn.NewKeyCache())
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	widget, err := authn.NewWidgetCodec([]byte("widget-secret"))
	if err != nil {
		t.Fatalf("widget codec: %v", err)
	}
	cookies := authn.NewCookieVerifier([]byte("cookie-secret"))
	auth, err := authn.NewAuthenticator(sessions,
		authn.WithWidgetCodec(widget),
		authn.WithCookieVerifier(cookies),
	)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}

	store := prompts.NewMemoryStore()
	h := New(Config{
		Auth:    auth,
		Store:   store,
		Cookies: cookies,
		Widget:  widget,
	})
	return &apiFixture{handler: h, store: store, widget: widget, cookies: cookies}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, path, rd)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		tok, err := f.widget.Issue(userID)
		if err != nil {
			t.Fatalf("issue widget token: %v", err)
		}
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/prompts", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]string
	decodeInto(t, rec, &body)
	if body["error"] != authn.MsgNotAuthenticated {
		t.Errorf("error = %q, want %q", body["error"], authn.MsgNotAuthenticated)
	}
	if rec.Header().Get("WWW-Authenticate") != "" {
		t.Error("REST 401 must not carry a challenge header")
	}
}

func TestAPI_PromptCRUD(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/prompts", "u1", map[string]any{
		"title": "standup notes",
		"body":  "summarize yesterday",
		"tags":  []string{"work"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created prompts.Prompt
	decodeInto(t, rec, &created)
	if created.ID == "" {
		t.Fatal("no id assigned")
	}

	rec = f.do(t, http.MethodGet, "/api/prompts", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var items []prompts.Prompt
	decodeInto(t, rec, &items)
	if len(items) != 1 {
		t.Fatalf("list len = %d", len(items))
	}

	rec = f.do(t, http.MethodGet, "/api/prompts/"+created.ID, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/prompts/"+created.ID, "u1", map[string]any{
		"title": "standup notes v2",
		"body":  "summarize yesterday and today",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated prompts.Prompt
	decodeInto(t, rec, &updated)
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("update must preserve creation time")
	}

	rec = f.do(t, http.MethodDelete, "/api/prompts/"+created.ID, "u1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/prompts/"+created.ID, "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestAPI_UserIsolation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/prompts", "u1", map[string]any{
		"title": "secret", "body": "mine",
	})
	var created prompts.Prompt
	decodeInto(t, rec, &created)

	if rec := f.do(t, http.MethodGet, "/api/prompts/"+created.ID, "u2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("cross-user get status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/prompts/"+created.ID, "u2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("cross-user delete status = %d, want 404", rec.Code)
	}
}

func TestAPI_ValidatesBody(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/prompts", "u1", map[string]any{"title": "no body"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing body: status = %d, want 400", rec.Code)
	}

	tok, _ := f.widget.Issue("u1")
	r := httptest.NewRequest(http.MethodPost, "/api/prompts", bytes.NewReader([]byte("title=x")))
	r.Header.Set("Authorization", "Bearer "+tok)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("wrong content type: status = %d, want 415", rec.Code)
	}
}

func TestAPI_ExportImport(t *testing.T) {
	f := newAPIFixture(t)

	for _, title := range []string{"one", "two"} {
		rec := f.do(t, http.MethodPost, "/api/prompts", "u1", map[string]any{"title": title, "body": "b"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed %q: status = %d", title, rec.Code)
		}
	}

	rec := f.do(t, http.MethodGet, "/api/prompts/export", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	var exported promptExport
	decodeInto(t, rec, &exported)
	if exported.Version != 1 || len(exported.Prompts) != 2 {
		t.Fatalf("export = %+v", exported)
	}

	rec = f.do(t, http.MethodPost, "/api/prompts/import", "u2", map[string]any{
		"prompts": exported.Prompts,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result map[string]int
	decodeInto(t, rec, &result)
	if result["imported"] != 2 {
		t.Errorf("imported = %d, want 2", result["imported"])
	}

	rec = f.do(t, http.MethodGet, "/api/prompts", "u2", nil)
	var items []prompts.Prompt
	decodeInto(t, rec, &items)
	if len(items) != 2 {
		t.Errorf("u2 list len = %d", len(items))
	}
}

func TestAPI_Preferences(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/preferences", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("default get status = %d", rec.Code)
	}
	var prefs prompts.Preferences
	decodeInto(t, rec, &prefs)
	if prefs.SortOrder != "" {
		t.Errorf("default prefs = %+v", prefs)
	}

	rec = f.do(t, http.MethodPut, "/api/preferences", "u1", map[string]any{
		"defaultTags": []string{"work"},
		"sortOrder":   "title",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/preferences", "u1", nil)
	decodeInto(t, rec, &prefs)
	if prefs.SortOrder != "title" || len(prefs.DefaultTags) != 1 {
		t.Errorf("prefs = %+v", prefs)
	}
}

func TestAPI_DraftsUnconfigured(t *testing.T) {
	f := newAPIFixture(t)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		var body any
		if method == http.MethodPut {
			body = map[string]any{"title": "wip", "body": "x"}
		}
		rec := f.do(t, method, "/api/draft", "u1", body)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s /api/draft status = %d, want 503", method, rec.Code)
		}
	}
}

func TestAPI_MintWidgetToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/widget-token", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeInto(t, rec, &body)
	claims, err := f.widget.Verify(body["token"])
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("minted for %q, want u1", claims.UserID)
	}
	if body["expiresAt"] == "" {
		t.Error("missing expiresAt")
	}
}

func TestAPI_MintWidgetTokenUnconfigured(t *testing.T) {
	pk, kid, jwks := genRSA(t)
	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(jwks)
	}))
	t.Cleanup(jwksSrv.Close)

	sessions, err := authn.NewSessionValidator("https://idp.example.com", jwksSrv.URL, authn.NewKeyCache())
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	cookies := authn.NewCookieVerifier([]byte("cookie-secret"))
	auth, err := authn.NewAuthenticator(sessions, authn.WithCookieVerifier(cookies))
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	h := New(Config{Auth: auth, Store: prompts.NewMemoryStore(), Cookies: cookies})

	raw := signSessionToken(t, pk, kid, "https://idp.example.com")
	encoded, err := cookies.Encode(raw)
	if err != nil {
		t.Fatalf("encode cookie: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/widget-token", nil)
	r.AddCookie(&http.Cookie{Name: authn.SessionCookieName, Value: encoded})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body %s", rec.Code, rec.Body.String())
	}
}
