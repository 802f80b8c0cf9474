package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/cache"
)

func testManager(t *testing.T, provider Provider, ep endpoints, withStates bool) *Manager {
	t.Helper()
	cfgs := map[Provider]Config{
		provider: {
			ClientID:            "cid",
			ClientSecret:        "csec",
			RedirectURI:         "https://app.test/callback",
			FrontendRedirectURI: "https://app.test/done",
			UserAgent:           "gatehouse-test",
		},
	}
	var states *StateStore
	if withStates {
		states = NewStateStore(cache.NewMemory("", time.Minute), time.Minute)
	}
	m := NewManager(cfgs, states)
	m.endpoints = map[Provider]endpoints{provider: ep}
	return m
}

func TestMergeScopesSetSemantics(t *testing.T) {
	got := mergeScopes(Google, []string{"email", "calendar"}, []string{"profile", "calendar", ""})
	want := []string{"calendar", "email", "openid", "profile"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mergeScopes = %v, want %v", got, want)
	}
}

func TestAuthURL(t *testing.T) {
	m := testManager(t, Google, providerEndpoints[Google], false)
	raw, err := m.AuthURL(context.Background(), Google, "st4te", []string{"calendar"})
	if err != nil {
		t.Fatalf("AuthURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "cid" || q.Get("state") != "st4te" || q.Get("response_type") != "code" {
		t.Fatalf("unexpected query: %v", q)
	}
	scopes := strings.Fields(q.Get("scope"))
	want := map[string]bool{"openid": true, "email": true, "profile": true, "calendar": true}
	if len(scopes) != len(want) {
		t.Fatalf("scopes = %v", scopes)
	}
	for _, s := range scopes {
		if !want[s] {
			t.Fatalf("unexpected scope %q", s)
		}
	}
}

func TestAuthURLUnconfiguredProvider(t *testing.T) {
	m := testManager(t, Google, providerEndpoints[Google], false)
	if _, err := m.AuthURL(context.Background(), Discord, "s", nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestExchangeAndFetchProfile(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "c0de" {
			t.Fatalf("unexpected form: %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "prov-access",
			"refresh_token": "prov-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer prov-access" {
			t.Fatalf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":             "g-123",
			"email":          "alice@example.com",
			"name":           "Alice",
			"picture":        "https://img/p.png",
			"verified_email": true,
			"locale":         "es",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ep := endpoints{auth: srv.URL + "/auth", token: srv.URL + "/token", userInfo: srv.URL + "/userinfo"}
	m := testManager(t, Google, ep, true)
	ctx := context.Background()

	state, err := m.States().New(ctx, Google)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}

	tok, err := m.Exchange(ctx, Google, "c0de", state)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if tok.AccessToken != "prov-access" || tok.RefreshToken != "prov-refresh" {
		t.Fatalf("token = %+v", tok)
	}
	if tok.ExpiresAt == nil || !tok.ExpiresAt.After(time.Now()) {
		t.Fatalf("expires_at not set: %+v", tok)
	}

	prof, err := m.FetchProfile(ctx, tok)
	if err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if prof.SubjectID != "g-123" || prof.Email != "alice@example.com" || !prof.EmailVerified || prof.Locale != "es" {
		t.Fatalf("profile = %+v", prof)
	}

	// Replayed state must fail before touching the provider.
	if _, err := m.Exchange(ctx, Google, "c0de", state); !errors.Is(err, ErrTokenExchange) {
		t.Fatalf("replayed state: err = %v, want ErrTokenExchange", err)
	}
	if tokenCalls != 1 {
		t.Fatalf("token endpoint called %d times, want 1", tokenCalls)
	}
}

func TestExchangeProviderRejectsCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant", "error_description": "bad code"})
	}))
	defer srv.Close()

	ep := endpoints{token: srv.URL, userInfo: srv.URL}
	m := testManager(t, GitHub, ep, false)
	if _, err := m.Exchange(context.Background(), GitHub, "bad", ""); !errors.Is(err, ErrTokenExchange) {
		t.Fatalf("err = %v, want ErrTokenExchange", err)
	}
}

func TestFetchProfileErrorTaxonomy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/unauthorized":
			w.WriteHeader(http.StatusUnauthorized)
		case "/badjson":
			w.Write([]byte("{not json"))
		case "/nosubject":
			json.NewEncoder(w).Encode(map[string]any{"email": "x@y.z"})
		}
	}))
	defer srv.Close()

	cases := []struct {
		path string
		want error
	}{
		{"/unauthorized", ErrUserInfo},
		{"/badjson", ErrInvalidResponse},
		{"/nosubject", ErrInvalidResponse},
	}
	for _, tc := range cases {
		m := testManager(t, Google, endpoints{userInfo: srv.URL + tc.path}, false)
		tok := &Token{Provider: Google, AccessToken: "at"}
		if _, err := m.FetchProfile(context.Background(), tok); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.path, err, tc.want)
		}
	}
}

func TestFetchProfileNetworkError(t *testing.T) {
	// Closed server => connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	m := testManager(t, Google, endpoints{userInfo: addr + "/userinfo"}, false)
	tok := &Token{Provider: Google, AccessToken: "at"}
	if _, err := m.FetchProfile(context.Background(), tok); !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
}

func TestRefreshRequiresRefreshToken(t *testing.T) {
	m := testManager(t, Google, providerEndpoints[Google], false)
	tok := &Token{Provider: Google, AccessToken: "at"}
	if _, err := m.Refresh(context.Background(), tok); !errors.Is(err, ErrTokenExchange) {
		t.Fatalf("err = %v, want ErrTokenExchange", err)
	}
}

func TestRefreshKeepsOldRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Fatalf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "new-access", "token_type": "Bearer"})
	}))
	defer srv.Close()

	m := testManager(t, Google, endpoints{token: srv.URL}, false)
	tok := &Token{Provider: Google, AccessToken: "old", RefreshToken: "keepme", Scope: "openid"}
	next, err := m.Refresh(context.Background(), tok)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.AccessToken != "new-access" || next.RefreshToken != "keepme" || next.Scope != "openid" {
		t.Fatalf("next = %+v", next)
	}
}

func TestNormalizePerProvider(t *testing.T) {
	cases := []struct {
		name     string
		provider Provider
		raw      map[string]any
		want     Profile
	}{
		{
			name:     "github numeric id and empty email",
			provider: GitHub,
			raw:      map[string]any{"id": float64(98765), "name": "Octo", "avatar_url": "https://gh/a.png", "email": ""},
			want:     Profile{SubjectID: "98765", Name: "Octo", AvatarURL: "https://gh/a.png"},
		},
		{
			name:     "discord avatar cdn url",
			provider: Discord,
			raw:      map[string]any{"id": "d-1", "username": "disc", "avatar": "abc", "verified": true, "locale": "en-US", "email": "d@x.y"},
			want:     Profile{SubjectID: "d-1", Name: "disc", AvatarURL: "https://cdn.discordapp.com/avatars/d-1/abc.png", EmailVerified: true, Locale: "en-US", Email: "d@x.y"},
		},
		{
			name:     "microsoft falls back to userPrincipalName",
			provider: Microsoft,
			raw:      map[string]any{"id": "ms-1", "displayName": "MS User", "userPrincipalName": "u@corp.com"},
			want:     Profile{SubjectID: "ms-1", Name: "MS User", Email: "u@corp.com"},
		},
		{
			name:     "microsoft prefers mail",
			provider: Microsoft,
			raw:      map[string]any{"id": "ms-2", "mail": "m@corp.com", "userPrincipalName": "u@corp.com"},
			want:     Profile{SubjectID: "ms-2", Email: "m@corp.com"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalize(tc.provider, tc.raw)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got.SubjectID != tc.want.SubjectID || got.Email != tc.want.Email ||
				got.Name != tc.want.Name || got.AvatarURL != tc.want.AvatarURL ||
				got.EmailVerified != tc.want.EmailVerified || got.Locale != tc.want.Locale {
				t.Fatalf("normalize = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNormalizeMissingSubject(t *testing.T) {
	for _, p := range []Provider{Google, GitHub, Discord, Microsoft} {
		if _, err := normalize(p, map[string]any{"email": "x@y.z"}); !errors.Is(err, ErrInvalidResponse) {
			t.Fatalf("%s: err = %v, want ErrInvalidResponse", p, err)
		}
	}
}

func TestParseProvider(t *testing.T) {
	if p, err := ParseProvider("google"); err != nil || p != Google {
		t.Fatalf("ParseProvider(google) = %v, %v", p, err)
	}
	if _, err := ParseProvider("myspace"); !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}
