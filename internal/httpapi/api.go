// Package httpapi is the thin hosting layer over the orchestrator: it maps
// JSON requests to orchestrator calls and typed failures to status codes.
// No auth logic lives here.
package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dropDatabas3/gatehouse/internal/auth"
	"github.com/dropDatabas3/gatehouse/internal/oauth"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
)

// API holds the handlers' dependencies. States may be nil when the hosting
// application manages CSRF state itself.
type API struct {
	svc    *auth.Service
	states *oauth.StateStore
	log    *zap.Logger
}

// New builds the API layer.
func New(svc *auth.Service, states *oauth.StateStore) *API {
	return &API{svc: svc, states: states, log: logger.Named("httpapi")}
}

// Router wires all routes.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", a.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", a.signup)
		r.Post("/auth/login", a.login)
		r.Post("/auth/refresh", a.refresh)
		r.Get("/auth/introspect", a.introspect)
		r.Get("/auth/me", a.me)

		r.Route("/oauth/{provider}", func(r chi.Router) {
			r.Get("/start", a.oauthStart)
			r.Get("/callback", a.oauthCallback)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/providers", a.listProviders)
			r.Post("/providers/{provider}/link", a.linkAccount)
			r.Delete("/providers/{provider}", a.unlinkAccount)
		})
	})

	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}
	res, err := a.svc.SignupCredentials(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{User: toUserDTO(res.User), Tokens: res.Tokens})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}
	res, err := a.svc.LoginCredentials(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: toUserDTO(res.User), Tokens: res.Tokens})
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !readJSON(w, r, &req) {
		return
	}
	pair, err := a.svc.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// bearerToken extrae el access token del header Authorization.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

func (a *API) introspect(w http.ResponseWriter, r *http.Request) {
	claims, err := a.svc.ValidateAccessToken(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, introspectResponse{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt,
		IssuedAt:  claims.IssuedAt,
	})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	u, err := a.svc.UserFromToken(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (a *API) provider(r *http.Request) (oauth.Provider, error) {
	return oauth.ParseProvider(chi.URLParam(r, "provider"))
}

// oauthStart creates a one-shot state and redirects the browser to the
// provider's authorization endpoint.
func (a *API) oauthStart(w http.ResponseWriter, r *http.Request) {
	provider, err := a.provider(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var state string
	if a.states != nil {
		state, err = a.states.New(r.Context(), provider)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		state = r.URL.Query().Get("state")
	}

	var extra []string
	if s := r.URL.Query().Get("scopes"); s != "" {
		extra = strings.Split(s, ",")
	}
	authURL, err := a.svc.AuthURL(r.Context(), provider, state, extra)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// oauthCallback completes the delegated flow. When a frontend redirect is
// configured the tokens travel in the URL fragment so they never hit a
// server log; otherwise the response is plain JSON.
func (a *API) oauthCallback(w http.ResponseWriter, r *http.Request) {
	provider, err := a.provider(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	res, err := a.svc.LoginOAuth(r.Context(), provider, q.Get("code"), q.Get("state"))
	if err != nil {
		a.log.Warn("oauth callback failed",
			logger.ProviderField(string(provider)),
			zap.Error(err))
		writeError(w, err)
		return
	}

	if frontend, err := a.svc.FrontendRedirectURI(provider); err == nil && frontend != "" {
		frag := url.Values{}
		frag.Set("access_token", res.Tokens.AccessToken)
		frag.Set("refresh_token", res.Tokens.RefreshToken)
		http.Redirect(w, r, frontend+"#"+frag.Encode(), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: toUserDTO(res.User), Tokens: res.Tokens})
}

// requireSelf only lets a caller act on its own user id.
func (a *API) requireSelf(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "id")
	subject, err := a.svc.UserIDFromToken(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return "", false
	}
	if subject != userID {
		writeJSON(w, http.StatusForbidden, errorResponse{Code: "forbidden", Message: "token subject does not match user"})
		return "", false
	}
	return userID, true
}

func (a *API) listProviders(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireSelf(w, r)
	if !ok {
		return
	}
	providers, err := a.svc.LinkedProviders(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"providers": providers})
}

type linkRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (a *API) linkAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireSelf(w, r)
	if !ok {
		return
	}
	provider, err := a.provider(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req linkRequest
	if !readJSON(w, r, &req) {
		return
	}
	u, err := a.svc.LinkAccount(r.Context(), userID, provider, req.Code, req.State)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (a *API) unlinkAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireSelf(w, r)
	if !ok {
		return
	}
	provider, err := a.provider(r)
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := a.svc.UnlinkAccount(r.Context(), userID, provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}
