package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/auth"
	"github.com/dropDatabas3/gatehouse/internal/oauth"
	"github.com/dropDatabas3/gatehouse/internal/security/password"
	"github.com/dropDatabas3/gatehouse/internal/store/memory"
	"github.com/dropDatabas3/gatehouse/internal/token"
)

type stubBridge struct {
	profile *oauth.Profile
}

func (s *stubBridge) AuthURL(ctx context.Context, provider oauth.Provider, state string, extra []string) (string, error) {
	return "https://provider.example/authorize?state=" + state, nil
}

func (s *stubBridge) Exchange(ctx context.Context, provider oauth.Provider, code, state string) (*oauth.Token, error) {
	if code == "" {
		return nil, oauth.ErrTokenExchange
	}
	return &oauth.Token{Provider: provider, AccessToken: "tok", TokenType: "Bearer", CreatedAt: time.Now()}, nil
}

func (s *stubBridge) FetchProfile(ctx context.Context, tok *oauth.Token) (*oauth.Profile, error) {
	if s.profile == nil {
		return nil, oauth.ErrUserInfo
	}
	cp := *s.profile
	cp.Provider = tok.Provider
	return &cp, nil
}

func (s *stubBridge) Refresh(ctx context.Context, tok *oauth.Token) (*oauth.Token, error) {
	return tok, nil
}

func (s *stubBridge) FrontendRedirectURI(provider oauth.Provider) (string, error) {
	return "", nil
}

var hashParams = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func newServer(t *testing.T, bridge oauth.Service) *httptest.Server {
	t.Helper()
	tokens, err := token.NewJWT("test-secret-0123456789", "gatehouse-test", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}
	svc, err := auth.New(memory.New(), password.NewArgon2id(hashParams), password.Policy{MinLength: 4}, tokens, bridge)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	srv := httptest.NewServer(New(svc, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestSignupLoginIntrospectFlow(t *testing.T) {
	srv := newServer(t, &stubBridge{})

	resp := postJSON(t, srv.URL+"/v1/auth/signup", credentialsRequest{Identifier: "bob", Password: "pw1pw1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
	created := decode[sessionResponse](t, resp)
	if created.User.Identifier != "bob" || created.Tokens.AccessToken == "" {
		t.Fatalf("session = %+v", created)
	}

	resp = postJSON(t, srv.URL+"/v1/auth/login", credentialsRequest{Identifier: "bob", Password: "pw1pw1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	logged := decode[sessionResponse](t, resp)
	if logged.User.ID != created.User.ID {
		t.Fatalf("user id changed: %s vs %s", logged.User.ID, created.User.ID)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/auth/introspect", nil)
	req.Header.Set("Authorization", "Bearer "+logged.Tokens.AccessToken)
	r2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	if r2.StatusCode != http.StatusOK {
		t.Fatalf("introspect status = %d", r2.StatusCode)
	}
	intro := decode[introspectResponse](t, r2)
	if intro.Subject != created.User.ID {
		t.Fatalf("subject = %s", intro.Subject)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newServer(t, &stubBridge{})

	// seed a user
	resp := postJSON(t, srv.URL+"/v1/auth/signup", credentialsRequest{Identifier: "eve", Password: "pw1pw1"})
	created := decode[sessionResponse](t, resp)

	cases := []struct {
		name   string
		status int
		do     func() *http.Response
	}{
		{"wrong password", http.StatusUnauthorized, func() *http.Response {
			return postJSON(t, srv.URL+"/v1/auth/login", credentialsRequest{Identifier: "eve", Password: "no"})
		}},
		{"unknown identifier", http.StatusUnauthorized, func() *http.Response {
			return postJSON(t, srv.URL+"/v1/auth/login", credentialsRequest{Identifier: "nobody", Password: "pw1pw1"})
		}},
		{"duplicate signup", http.StatusConflict, func() *http.Response {
			return postJSON(t, srv.URL+"/v1/auth/signup", credentialsRequest{Identifier: "eve", Password: "pw1pw1"})
		}},
		{"refresh with access token", http.StatusUnauthorized, func() *http.Response {
			return postJSON(t, srv.URL+"/v1/auth/refresh", refreshRequest{RefreshToken: created.Tokens.AccessToken})
		}},
		{"unknown provider", http.StatusBadRequest, func() *http.Response {
			resp, err := http.Get(srv.URL + "/v1/oauth/myspace/callback?code=c&state=s")
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			return resp
		}},
		{"malformed body", http.StatusBadRequest, func() *http.Response {
			resp, err := http.Post(srv.URL+"/v1/auth/login", "application/json", bytes.NewReader([]byte("{nope")))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			return resp
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := tc.do()
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
		})
	}
}

func TestRefreshRotation(t *testing.T) {
	srv := newServer(t, &stubBridge{})

	resp := postJSON(t, srv.URL+"/v1/auth/signup", credentialsRequest{Identifier: "kim", Password: "pw1pw1"})
	created := decode[sessionResponse](t, resp)

	resp = postJSON(t, srv.URL+"/v1/auth/refresh", refreshRequest{RefreshToken: created.Tokens.RefreshToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", resp.StatusCode)
	}
	pair := decode[token.TokenPair](t, resp)
	if pair.AccessToken == "" || pair.AccessToken == created.Tokens.AccessToken {
		t.Fatalf("expected rotated pair, got %+v", pair)
	}
}

func TestOAuthCallbackCreatesSession(t *testing.T) {
	bridge := &stubBridge{profile: &oauth.Profile{SubjectID: "g-1", Email: "oauth@example.com", Name: "OAuth User"}}
	srv := newServer(t, bridge)

	resp, err := http.Get(srv.URL + "/v1/oauth/google/callback?code=c&state=s")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status = %d", resp.StatusCode)
	}
	session := decode[sessionResponse](t, resp)
	if len(session.User.Accounts) == 0 {
		t.Fatalf("no accounts in %+v", session.User)
	}
}

func TestSelfOnlyProviderRoutes(t *testing.T) {
	srv := newServer(t, &stubBridge{})

	a := decode[sessionResponse](t, postJSON(t, srv.URL+"/v1/auth/signup", credentialsRequest{Identifier: "a@x", Password: "pw1pw1"}))
	b := decode[sessionResponse](t, postJSON(t, srv.URL+"/v1/auth/signup", credentialsRequest{Identifier: "b@x", Password: "pw1pw1"}))

	// a's token cannot touch b's providers
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/users/"+b.User.ID+"/providers", nil)
	req.Header.Set("Authorization", "Bearer "+a.Tokens.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	// own token works
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/users/"+a.User.ID+"/providers", nil)
	req.Header.Set("Authorization", "Bearer "+a.Tokens.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
