package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// Resources served by the fake backend.
var Resources = []string{"tasks", "skills", "challenges", "pomodoro", "moods"}

// MaxBodyBytes is the request size the fake backend accepts before 413.
const MaxBodyBytes = 100 << 10

// Override is a canned response for one "METHOD /path" key.
type Override struct {
	Status int
	Header http.Header
	Body   string
}

// Backend is an in-memory implementation of the target API, good enough to
// drive every probe through its happy path. Knobs switch individual
// protective behaviors off so tests can observe warnings and failures.
type Backend struct {
	// RateLimit throttles /api/health with 429 after this many hits. Zero
	// disables throttling.
	RateLimit int

	// ClientOrigin is the only origin granted CORS. Empty means none.
	ClientOrigin string

	// ReflectOrigin echoes any Origin back, with credentials allowed.
	ReflectOrigin bool

	// ConflictStatus is returned for duplicate registrations. Defaults to 400
	// with an "already exists" message, as Express backends commonly do.
	ConflictStatus int

	// GoogleClientID is placed in the OAuth redirect.
	GoogleClientID string

	mu         sync.Mutex
	users      map[string]*fakeUser // by email
	tokens     map[string]string    // token -> user id
	entities   map[string]map[string]map[string]any
	overrides  map[string]Override
	hits       map[string]int
	seq        int
	healthHits int
}

type fakeUser struct {
	ID       string
	Username string
	Email    string
	Password string
}

// NewBackend creates a Backend with rate limiting and a client origin set.
func NewBackend() *Backend {
	return &Backend{
		RateLimit:      10,
		ClientOrigin:   "http://localhost:3000",
		GoogleClientID: "1234567890-abcdefghijklmnopqrstuvwxyz012345.apps.googleusercontent.com",
		users:          make(map[string]*fakeUser),
		tokens:         make(map[string]string),
		entities:       make(map[string]map[string]map[string]any),
		overrides:      make(map[string]Override),
		hits:           make(map[string]int),
	}
}

// Start serves the backend on a test server closed at cleanup.
func (b *Backend) Start(tb testing.TB) *httptest.Server {
	tb.Helper()
	srv := httptest.NewServer(b)
	tb.Cleanup(srv.Close)
	return srv
}

// Override forces a canned response for method and path.
func (b *Backend) Override(method, path string, o Override) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[method+" "+path] = o
}

// Hits reports how many requests reached method and path.
func (b *Backend) Hits(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[method+" "+path]
}

// Entity returns a stored entity, if any.
func (b *Backend) Entity(resource, id string) (map[string]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entities[resource][id]
	return e, ok
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	b.hits[key]++
	if o, ok := b.overrides[key]; ok {
		for k, vs := range o.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(o.Status)
		_, _ = io.WriteString(w, o.Body)
		return
	}

	if r.Method == http.MethodOptions {
		b.preflight(w, r)
		return
	}
	b.cors(w, r)

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "api" {
		writeJSON(w, http.StatusNotFound, msg("Not found"))
		return
	}

	switch {
	case parts[1] == "health" && len(parts) == 2 && r.Method == http.MethodGet:
		b.healthHits++
		if b.RateLimit > 0 && b.healthHits > b.RateLimit {
			writeJSON(w, http.StatusTooManyRequests, msg("Too many requests, please try again later"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case parts[1] == "users":
		b.handleUsers(w, r, parts[2:])
	case isResource(parts[1]):
		b.handleResource(w, r, parts[1], parts[2:])
	default:
		writeJSON(w, http.StatusNotFound, msg("Not found"))
	}
}

func (b *Backend) handleUsers(w http.ResponseWriter, r *http.Request, rest []string) {
	route := r.Method + " " + strings.Join(rest, "/")
	switch {
	case route == "POST register":
		b.register(w, r)
	case route == "POST login":
		b.login(w, r)
	case route == "GET ":
		if _, ok := b.auth(w, r); !ok {
			return
		}
		list := make([]any, 0, len(b.users))
		for _, u := range b.users {
			list = append(list, publicUser(u))
		}
		writeJSON(w, http.StatusOK, list)
	case r.Method == http.MethodGet && len(rest) == 2 && rest[0] == "profile":
		if _, ok := b.auth(w, r); !ok {
			return
		}
		for _, u := range b.users {
			if u.ID == rest[1] {
				writeJSON(w, http.StatusOK, publicUser(u))
				return
			}
		}
		writeJSON(w, http.StatusNotFound, msg("User not found"))
	case route == "GET google":
		q := url.Values{}
		q.Set("client_id", b.GoogleClientID)
		q.Set("redirect_uri", "http://"+r.Host+"/api/users/google/callback")
		q.Set("response_type", "code")
		q.Set("scope", "profile email")
		w.Header().Set("Location", "https://accounts.google.com/o/oauth2/v2/auth?"+q.Encode())
		w.WriteHeader(http.StatusFound)
	case route == "GET google/callback":
		if r.URL.Query().Get("code") == "" {
			writeJSON(w, http.StatusBadRequest, msg("Missing authorization code"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": b.issue("google-user")})
	case route == "POST google-login":
		writeJSON(w, http.StatusUnauthorized, msg("Invalid Google credential"))
	default:
		writeJSON(w, http.StatusNotFound, msg("Not found"))
	}
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Username == "" || !validEmail(in.Email) || len(in.Password) < 6 {
		writeJSON(w, http.StatusBadRequest, msg("Please provide a username, a valid email, and a password of at least 6 characters"))
		return
	}
	if _, exists := b.users[in.Email]; exists {
		status := b.ConflictStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, msg("User already exists"))
		return
	}
	u := &fakeUser{ID: b.nextID(), Username: in.Username, Email: in.Email, Password: in.Password}
	b.users[in.Email] = u
	writeJSON(w, http.StatusCreated, map[string]any{"token": b.issue(u.ID), "user": publicUser(u)})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	u, ok := b.users[in.Email]
	if !ok || u.Password != in.Password {
		writeJSON(w, http.StatusUnauthorized, msg("Invalid email or password"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": b.issue(u.ID), "user": publicUser(u)})
}

func (b *Backend) handleResource(w http.ResponseWriter, r *http.Request, name string, rest []string) {
	userID, ok := b.auth(w, r)
	if !ok {
		return
	}
	store := b.entities[name]
	if store == nil {
		store = make(map[string]map[string]any)
		b.entities[name] = store
	}

	switch {
	case r.Method == http.MethodPost && len(rest) == 0:
		in := map[string]any{}
		if !decode(w, r, &in) {
			return
		}
		if name == "tasks" {
			if title, _ := in["title"].(string); strings.TrimSpace(title) == "" {
				writeJSON(w, http.StatusBadRequest, msg("Title is required"))
				return
			}
		}
		id := b.nextID()
		in["_id"] = id
		in["user"] = userID
		store[id] = in
		writeJSON(w, http.StatusCreated, in)
	case r.Method == http.MethodGet && len(rest) == 2 && rest[0] == "user":
		list := make([]any, 0)
		for _, e := range store {
			if e["user"] == rest[1] {
				list = append(list, e)
			}
		}
		writeJSON(w, http.StatusOK, list)
	case len(rest) == 1:
		e, found := store[rest[0]]
		if !found {
			writeJSON(w, http.StatusNotFound, msg("Not found"))
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, e)
		case http.MethodPut:
			in := map[string]any{}
			if !decode(w, r, &in) {
				return
			}
			for k, v := range in {
				if k != "_id" && k != "user" {
					e[k] = v
				}
			}
			writeJSON(w, http.StatusOK, e)
		case http.MethodDelete:
			delete(store, rest[0])
			writeJSON(w, http.StatusOK, msg("Deleted"))
		default:
			writeJSON(w, http.StatusMethodNotAllowed, msg("Method not allowed"))
		}
	default:
		writeJSON(w, http.StatusNotFound, msg("Not found"))
	}
}

func (b *Backend) auth(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || token == "" {
		writeJSON(w, http.StatusUnauthorized, msg("Not authorized, no token"))
		return "", false
	}
	userID, ok := b.tokens[token]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, msg("Not authorized, token failed"))
		return "", false
	}
	return userID, true
}

func (b *Backend) preflight(w http.ResponseWriter, r *http.Request) {
	b.cors(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) cors(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	if b.ReflectOrigin || (b.ClientOrigin != "" && origin == b.ClientOrigin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	}
}

// issue mints a JWT-shaped token for userID.
func (b *Backend) issue(userID string) string {
	sig := make([]byte, 16)
	_, _ = rand.Read(sig)
	enc := base64.RawURLEncoding
	token := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(fmt.Sprintf(`{"id":%q}`, userID))) + "." +
		enc.EncodeToString(sig)
	b.tokens[token] = userID
	return token
}

func (b *Backend) nextID() string {
	b.seq++
	return fmt.Sprintf("%024x", b.seq)
}

func isResource(name string) bool {
	for _, r := range Resources {
		if r == name {
			return true
		}
	}
	return false
}

func publicUser(u *fakeUser) map[string]any {
	return map[string]any{"_id": u.ID, "username": u.Username, "email": u.Email}
}

func validEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && strings.Contains(s[at:], ".")
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, msg("Unreadable body"))
		return false
	}
	if len(data) > MaxBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, msg("Payload too large"))
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, msg("Invalid JSON"))
		return false
	}
	return true
}

func msg(m string) map[string]any {
	return map[string]any{"message": m}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
