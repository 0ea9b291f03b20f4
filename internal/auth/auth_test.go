package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"golang.org/x/crypto/bcrypt"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func TestClaimsRoundTrip(t *testing.T) {
	identity := models.Identity{ID: uuid.New(), Email: "ash@pallet.town"}
	secret := []byte("test-secret")

	token, expiresAt, err := IssueAccessToken(identity, secret, time.Hour, time.Now())
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := ParseAccessToken(token, secret)
	require.NoError(t, err)
	got, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, identity, got)

	_, err = ParseAccessToken(token, []byte("other-secret"))
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidToken))

	expired, _, err := IssueAccessToken(identity, secret, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseAccessToken(expired, secret)
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidToken))
}

func TestLocalIdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewLocalIdentity("secret", nil).WithHashCost(bcrypt.MinCost)
	log := &eventLog{}
	unsubscribe := svc.Subscribe(log.record)

	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	result, err := svc.SignUp(ctx, "misty@cerulean.gym", "starmie")
	require.NoError(t, err)
	require.NotNil(t, result.Identity)
	assert.False(t, result.ConfirmationPending)
	assert.Equal(t, "misty@cerulean.gym", result.Identity.Email)

	_, err = svc.SignUp(ctx, "MISTY@cerulean.gym", "other")
	assert.True(t, utils.IsErrorCode(err, utils.ErrConflict))

	identity, err := svc.Verify(result.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.Identity.ID, identity.ID)

	require.NoError(t, svc.SignOut(ctx))
	session, err = svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	_, err = svc.SignIn(ctx, "misty@cerulean.gym", "wrong")
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidCredentials))

	session, err = svc.SignIn(ctx, "misty@cerulean.gym", "starmie")
	require.NoError(t, err)
	assert.Equal(t, result.Identity.ID, session.Identity.ID)

	assert.Equal(t, []EventType{EventSignedIn, EventSignedOut, EventSignedIn}, log.types())

	unsubscribe()
	unsubscribe()
	require.NoError(t, svc.SignOut(ctx))
	assert.Len(t, log.types(), 3)
}

func TestLocalIdentityRefreshesExpiredSession(t *testing.T) {
	ctx := context.Background()
	svc := NewLocalIdentity("secret", nil).WithHashCost(bcrypt.MinCost)
	now := time.Now()
	svc.now = func() time.Time { return now }

	_, err := svc.SignUp(ctx, "brock@pewter.gym", "onix")
	require.NoError(t, err)

	log := &eventLog{}
	svc.Subscribe(log.record)
	now = now.Add(2 * localTokenTTL)

	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.ExpiresAt.After(now))
	assert.Equal(t, []EventType{EventTokenRefreshed}, log.types())
}

// fakeGoTrue answers the GoTrue endpoints the identity service uses.
type fakeGoTrue struct {
	mu        sync.Mutex
	userID    uuid.UUID
	signup    string
	refreshOK bool
	logouts   int
}

func (f *fakeGoTrue) session(token string) string {
	return `{"access_token":"` + token + `","refresh_token":"rt-` + token + `","token_type":"bearer",` +
		`"expires_in":3600,"expires_at":` + jsonInt(time.Now().Add(time.Hour).Unix()) + `,` +
		`"user":{"id":"` + f.userID.String() + `","email":"ash@pallet.town","identities":[{"id":"1","provider":"email"}]}}`
}

func (f *fakeGoTrue) setSignup(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signup = body
}

func (f *fakeGoTrue) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func (f *fakeGoTrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/token" && r.URL.Query().Get("grant_type") == "password":
		var req map[string]string
		_ = json.Unmarshal(body, &req)
		if req["password"] != "pikachu" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}
		_, _ = io.WriteString(w, f.session("at-1"))
	case r.URL.Path == "/token" && r.URL.Query().Get("grant_type") == "refresh_token":
		if !f.refreshOK {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Refresh Token Not Found"}`)
			return
		}
		_, _ = io.WriteString(w, f.session("at-2"))
	case r.URL.Path == "/signup":
		_, _ = io.WriteString(w, f.signup)
	case r.URL.Path == "/logout":
		f.logouts++
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/user":
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"msg":"invalid JWT"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"`+f.userID.String()+`","email":"ash@pallet.town"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type recordingBinder struct {
	mu     sync.Mutex
	tokens []string
}

func (b *recordingBinder) UpdateAuthSession(session types.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, session.AccessToken)
}

func newSupabaseIdentity(t *testing.T, fake *fakeGoTrue) (*SupabaseIdentity, *recordingBinder) {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	binder := &recordingBinder{}
	client := gotrue.New("test", "anon").WithCustomGoTrueURL(srv.URL)
	return NewSupabaseIdentity(client, binder, SupabaseIdentityOptions{AnonKey: "anon"}, nil), binder
}

func TestSupabaseIdentitySignInAndOut(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGoTrue{userID: uuid.New()}
	svc, binder := newSupabaseIdentity(t, fake)
	log := &eventLog{}
	svc.Subscribe(log.record)

	_, err := svc.SignIn(ctx, "ash@pallet.town", "wrong")
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidCredentials), err)

	session, err := svc.SignIn(ctx, "ash@pallet.town", "pikachu")
	require.NoError(t, err)
	assert.Equal(t, fake.userID, session.Identity.ID)
	assert.Equal(t, "rt-at-1", session.RefreshToken)

	current, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at-1", current.AccessToken)

	require.NoError(t, svc.SignOut(ctx))
	current, err = svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	assert.Equal(t, []EventType{EventSignedIn, EventSignedOut}, log.types())
	assert.Equal(t, []string{"at-1", "anon"}, binder.tokens)
	assert.Equal(t, 1, fake.logoutCount())
}

func TestSupabaseIdentitySignUp(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGoTrue{userID: uuid.New()}
	svc, _ := newSupabaseIdentity(t, fake)

	fake.setSignup(fake.session("at-1"))
	result, err := svc.SignUp(ctx, "ash@pallet.town", "pikachu")
	require.NoError(t, err)
	assert.False(t, result.ConfirmationPending)
	require.NotNil(t, result.Identity)
	assert.Equal(t, fake.userID, result.Identity.ID)
	require.NotNil(t, result.Session)

	fake.setSignup(`{"id":"` + fake.userID.String() + `","email":"ash@pallet.town","identities":[{"id":"1","provider":"email"}]}`)
	result, err = svc.SignUp(ctx, "ash@pallet.town", "pikachu")
	require.NoError(t, err)
	assert.True(t, result.ConfirmationPending)
	assert.NotNil(t, result.Identity)
	assert.Nil(t, result.Session)

	fake.setSignup(`{"id":"` + fake.userID.String() + `","email":"ash@pallet.town","identities":[]}`)
	result, err = svc.SignUp(ctx, "ash@pallet.town", "pikachu")
	require.NoError(t, err)
	assert.True(t, result.ConfirmationPending)
	assert.Nil(t, result.Identity)
}

func TestSupabaseIdentityExpiredSessionRefresh(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGoTrue{userID: uuid.New(), refreshOK: true}
	svc, _ := newSupabaseIdentity(t, fake)

	_, err := svc.SignIn(ctx, "ash@pallet.town", "pikachu")
	require.NoError(t, err)
	log := &eventLog{}
	svc.Subscribe(log.record)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at-2", session.AccessToken)

	fake.mu.Lock()
	fake.refreshOK = false
	fake.mu.Unlock()
	svc.now = func() time.Time { return time.Now().Add(4 * time.Hour) }
	session, err = svc.CurrentSession(ctx)
	assert.Error(t, err)
	assert.Nil(t, session)

	assert.Equal(t, []EventType{EventTokenRefreshed, EventSignedOut}, log.types())
}

func TestSupabaseIdentityRestore(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGoTrue{userID: uuid.New(), refreshOK: true}
	svc, _ := newSupabaseIdentity(t, fake)

	session, err := svc.Restore(ctx, "at-1", "rt-at-1")
	require.NoError(t, err)
	assert.Equal(t, fake.userID, session.Identity.ID)

	// rejected access token falls back to the refresh token
	session, err = svc.Restore(ctx, "stale", "rt-at-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", session.AccessToken)

	_, err = svc.Restore(ctx, "stale", "")
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidToken), err)
}

func TestSupabaseIdentityRestoreWithSecret(t *testing.T) {
	identity := models.Identity{ID: uuid.New(), Email: "ash@pallet.town"}
	token, _, err := IssueAccessToken(identity, []byte("jwt-secret"), time.Hour, time.Now())
	require.NoError(t, err)

	svc := NewSupabaseIdentity(gotrue.New("test", "anon"), nil, SupabaseIdentityOptions{JWTSecret: "jwt-secret"}, nil)
	session, err := svc.Restore(context.Background(), token, "")
	require.NoError(t, err)
	assert.Equal(t, identity, session.Identity)
}
