package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/cropintel-api/internal/config"
	"github.com/cropintel-api/internal/domain"
	jwtinfra "github.com/cropintel-api/internal/infrastructure/jwt"
	"github.com/cropintel-api/internal/otp"
	"github.com/cropintel-api/internal/pkg/clock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory collaborators ---

type memUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (m *memUsers) each(fn func(u domain.User) bool) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if fn(u) {
			cp := u
			return &cp
		}
	}
	return nil
}

func (m *memUsers) Get(_ context.Context, id string) (*domain.User, error) {
	if u := m.each(func(u domain.User) bool { return u.UserID == id }); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	return m.each(func(u domain.User) bool { return u.Email == email }) != nil, nil
}

func (m *memUsers) ExistsByHandle(_ context.Context, h string) (bool, error) {
	return m.each(func(u domain.User) bool { return u.Handle == h }) != nil, nil
}

func (m *memUsers) FindByHandleOrEmail(_ context.Context, id string) (*domain.User, error) {
	if u := m.each(func(u domain.User) bool { return u.Handle == id || u.Email == id }); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) Insert(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID] = *u
	return nil
}

func (m *memUsers) UpdateCredential(_ context.Context, email, hash string) error {
	return m.update(func(u *domain.User) bool { return u.Email == email }, func(u *domain.User) { u.PasswordHash = hash })
}

func (m *memUsers) SetName(_ context.Context, id, name string) (*domain.User, error) {
	err := m.update(func(u *domain.User) bool { return u.UserID == id }, func(u *domain.User) { u.Name = name })
	if err != nil {
		return nil, err
	}
	return m.Get(context.Background(), id)
}

func (m *memUsers) SetPersonalization(_ context.Context, id string, p domain.Personalization) (*domain.User, error) {
	err := m.update(func(u *domain.User) bool { return u.UserID == id }, func(u *domain.User) { u.Personalization = &p })
	if err != nil {
		return nil, err
	}
	return m.Get(context.Background(), id)
}

func (m *memUsers) update(match func(*domain.User) bool, apply func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if match(&u) {
			apply(&u)
			m.users[id] = u
			return nil
		}
	}
	return domain.ErrAccountNotFound
}

type memChats struct{}

func (memChats) Upsert(_ context.Context, userID string, in domain.ChatSessionInput) (*domain.ChatSession, error) {
	return &domain.ChatSession{UserID: userID, SessionID: in.SessionID, Title: in.Title}, nil
}
func (memChats) ListByUser(context.Context, string) ([]domain.ChatSession, error) { return nil, nil }
func (memChats) Delete(context.Context, string, string) error                   { return nil }

// outbox records every delivered message.
type outbox struct {
	mu   sync.Mutex
	last map[string]string
}

var codeRe = regexp.MustCompile(`\b\d{6}\b`)

func (o *outbox) SendEmail(_ context.Context, to, _, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last[to] = codeRe.FindString(body)
	return nil
}

func (o *outbox) code(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last[email]
}

// --- harness ---

type server struct {
	h     http.Handler
	mail  *outbox
	clock *clock.Fake
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	provider, err := jwtinfra.NewEphemeralProvider(time.Hour, 5*time.Minute)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{
		OTP:            config.OTPConfig{Expiry: otp.DefaultExpiry},
		SMTP:           config.SMTPConfig{Timeout: time.Second},
		BcryptCost:     4,
		AllowedOrigins: []string{"*"},
	}
	s := &server{
		mail:  &outbox{last: map[string]string{}},
		clock: clock.NewFake(time.Now().UTC()),
	}
	s.h = NewRouter(ctx, cfg, &Deps{
		UserRepo:        &memUsers{users: map[string]domain.User{}},
		ChatSessionRepo: memChats{},
		OTPStore:        otp.NewMemoryStore(),
		Mailer:          s.mail,
		JWTProvider:     provider,
		Clock:           s.clock,
		Logger:          logger,
	})
	return s
}

func (s *server) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = fmt.Sprintf("10.0.0.%d:1234", len(t.Name())%250)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}

// --- end to end ---

func TestRouter_RegistrationLoginAndProfile(t *testing.T) {
	s := newServer(t)

	rr := s.do(t, http.MethodPost, "/v1/auth/register/otp", "", map[string]string{"email": "new@example.com"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	code := s.mail.code("new@example.com")
	require.Len(t, code, 6)

	s.clock.Advance(10 * time.Second)
	rr = s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": "New Farmer", "user_id": "new_farmer", "email": "new@example.com", "password": "secret1", "otp": code,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// code is consumed
	rr = s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": "Other", "user_id": "other", "email": "new@example.com", "password": "secret1", "otp": code,
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"identifier": "new_farmer", "password": "secret1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var login struct {
		Bearer string `json:"Bearer"`
	}
	decode(t, rr, &login)
	require.NotEmpty(t, login.Bearer)

	rr = s.do(t, http.MethodGet, "/v1/profile", login.Bearer, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var me struct {
		User domain.User `json:"user"`
	}
	decode(t, rr, &me)
	assert.Equal(t, "new_farmer", me.User.Handle)
	assert.Equal(t, "new@example.com", me.User.Email)

	rr = s.do(t, http.MethodGet, "/v1/personalization", login.Bearer, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodPost, "/v1/personalization", login.Bearer, map[string]interface{}{"gender": "female", "age": 31, "crop_type": "maize"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/v1/personalization", login.Bearer, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var p struct {
		Personalization domain.Personalization `json:"personalization"`
	}
	decode(t, rr, &p)
	assert.Equal(t, "maize", p.Personalization.CropType)
}

func TestRouter_PasswordResetWithToken(t *testing.T) {
	s := newServer(t)
	rr := s.do(t, http.MethodPost, "/v1/auth/register/otp", "", map[string]string{"email": "joe@example.com"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": "Joe", "user_id": "joe", "email": "joe@example.com", "password": "oldpass", "otp": s.mail.code("joe@example.com"),
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(t, http.MethodPost, "/v1/auth/password-reset/otp", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodPost, "/v1/auth/password-reset/otp", "", map[string]string{"email": "joe@example.com"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(t, http.MethodPost, "/v1/auth/password-reset/verify", "", map[string]string{"email": "joe@example.com", "otp": s.mail.code("joe@example.com")})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var verified struct {
		ResetToken string `json:"reset_token"`
	}
	decode(t, rr, &verified)

	rr = s.do(t, http.MethodPost, "/v1/auth/password-reset", "", map[string]string{"email": "joe@example.com", "new_password": "newpass", "reset_token": verified.ResetToken})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"identifier": "joe@example.com", "password": "oldpass"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"identifier": "joe@example.com", "password": "newpass"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{"/v1/profile", "/v1/personalization", "/v1/chat/sessions"} {
		rr := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestRouter_Health(t *testing.T) {
	s := newServer(t)
	rr := s.do(t, http.MethodGet, "/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	s := newServer(t)

	limited := false
	for i := 0; i < 30 && !limited; i++ {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{"identifier": "ghost", "password": "nope"}))
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", &buf)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rr := httptest.NewRecorder()
		s.h.ServeHTTP(rr, req)
		limited = rr.Code == http.StatusTooManyRequests
	}
	assert.True(t, limited)
}
