// Package auth wraps account storage, password hashing and session tokens
// behind a single session provider. Consumers observe session changes over
// an event channel instead of callbacks.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"meterlog/internal/bills"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid session token")
	// ErrEmailNotConfirmed is part of the sign-in error contract for
	// deployments that put an email confirmation step in front of
	// CreateUser. The built-in stores activate accounts immediately and
	// never return it; handlers still map it to friendlier copy.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	ErrMissingField      = errors.New("email and password are required")
	ErrWeakPassword      = errors.New("password must be at least 8 characters")
)

// SessionState is the provider's view of the current browser session.
type SessionState int

const (
	Unresolved SessionState = iota
	Anonymous
	Authenticated
)

type (
	// Session identifies an authenticated user.
	Session struct {
		UserID   string
		Email    string
		FullName string
		Token    string
	}

	// SessionEvent is published on every sign-in and sign-out.
	SessionEvent struct {
		State   SessionState
		Session *Session // nil when State != Authenticated
	}

	// Provider owns the session lifecycle for the whole process.
	Provider struct {
		users      bills.UserStore
		secret     []byte
		sessionTTL time.Duration

		mu          sync.Mutex
		subscribers map[int]chan SessionEvent
		nextSubID   int
	}
)

func NewProvider(users bills.UserStore, secret []byte, sessionTTL time.Duration) *Provider {
	return &Provider{
		users:       users,
		secret:      secret,
		sessionTTL:  sessionTTL,
		subscribers: map[int]chan SessionEvent{},
	}
}

// SignUp registers a new account and returns a signed-in session.
func (p *Provider) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrMissingField
	}
	if len(password) < 8 {
		return Session{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}

	u, err := p.users.CreateUser(ctx, bills.User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
	})
	if err != nil {
		return Session{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID, "email", u.Email)
	return p.openSession(ctx, u)
}

// SignIn verifies credentials and returns a fresh session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrMissingField
	}

	u, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, bills.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	return p.openSession(ctx, u)
}

// SignOut invalidates the caller's view of the session and notifies
// subscribers. Tokens are stateless, so expiry is the cookie's job.
func (p *Provider) SignOut(ctx context.Context) {
	slog.DebugContext(ctx, "Session closed")
	p.publish(SessionEvent{State: Anonymous})
}

// SessionFromToken resolves a cookie token to a session, or Anonymous when
// the token is missing, expired or forged.
func (p *Provider) SessionFromToken(ctx context.Context, token string) (Session, SessionState) {
	if token == "" {
		return Session{}, Anonymous
	}
	userID, err := UserIDFromToken(token, p.secret)
	if err != nil {
		return Session{}, Anonymous
	}
	u, err := p.users.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, Anonymous
	}
	return Session{UserID: u.ID, Email: u.Email, FullName: u.FullName, Token: token}, Authenticated
}

// SessionTTL returns the configured token lifetime, for cookie max-age.
func (p *Provider) SessionTTL() time.Duration {
	return p.sessionTTL
}

// Subscribe returns a buffered event channel and an unsubscribe func. The
// caller must call unsubscribe on teardown.
func (p *Provider) Subscribe() (<-chan SessionEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	ch := make(chan SessionEvent, 8)
	p.subscribers[id] = ch
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subscribers[id]; ok {
			delete(p.subscribers, id)
			close(c)
		}
	}
}

func (p *Provider) openSession(ctx context.Context, u bills.User) (Session, error) {
	token, err := GenerateToken(u.ID, p.secret, p.sessionTTL)
	if err != nil {
		return Session{}, err
	}
	s := Session{UserID: u.ID, Email: u.Email, FullName: u.FullName, Token: token}
	slog.InfoContext(ctx, "Session opened", "user_id", u.ID)
	p.publish(SessionEvent{State: Authenticated, Session: &s})
	return s, nil
}

func (p *Provider) publish(ev SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than block sign-in
		}
	}
}
