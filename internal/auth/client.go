package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/functions"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

const sessionFile = "session.json"

// Listener receives session-change notifications
type Listener = func(event models.AuthEvent, session *models.Session)

// Client is the client-side session source. The session survives restarts
// in a file under the data directory.
type Client struct {
	api    *functions.Client
	path   string
	now    func() time.Time
	logger *logging.Logger

	mu        sync.Mutex
	session   *models.Session
	loaded    bool
	listeners map[int]Listener
	nextID    int
}

// NewClient creates a session client and makes it the token source of api
func NewClient(api *functions.Client, dataDir string) *Client {
	c := &Client{
		api:       api,
		path:      filepath.Join(dataDir, sessionFile),
		now:       time.Now,
		logger:    logging.NewNop(),
		listeners: make(map[int]Listener),
	}
	api.SetTokenSource(c)
	return c
}

// SetLogger sets the logger used for session file problems
func (c *Client) SetLogger(logger *logging.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// GetSession returns the current session, or nil when signed out or expired
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		session, err := c.readSession()
		if err != nil {
			return nil, err
		}
		c.session = session
		c.loaded = true
	}

	if c.session == nil || c.session.Expired(c.now()) {
		return nil, nil
	}
	s := *c.session
	return &s, nil
}

// AccessToken returns the bearer token of the current session, empty when
// none. A corrupted session file counts as no session so that signing in
// can replace it.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	session, err := c.GetSession(ctx)
	if apperrors.IsKind(err, apperrors.KindDataCorruption) {
		c.forget(err)
		return "", nil
	}
	if err != nil || session == nil {
		return "", err
	}
	return session.AccessToken, nil
}

// forget drops the in-memory session after the saved one failed to load
func (c *Client) forget(cause error) {
	c.mu.Lock()
	c.session = nil
	c.loaded = true
	c.mu.Unlock()
	c.logger.WithError(cause).WithField("path", c.path).Warn("Ignoring unreadable saved session")
}

// SignIn authenticates with email and password
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	return c.authenticate(ctx, "/api/v1/auth/login", email, password)
}

// SignUp creates an account and signs in
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	return c.authenticate(ctx, "/api/v1/auth/signup", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*models.Session, error) {
	creds := models.Credentials{Email: email, Password: password}
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}

	var session models.Session
	if err := c.api.Do(ctx, http.MethodPost, path, creds, &session); err != nil {
		return nil, err
	}

	if err := c.store(&session); err != nil {
		return nil, err
	}
	c.emit(models.AuthEventSignedIn, &session)
	return &session, nil
}

// Refresh exchanges the current token for a new one
func (c *Client) Refresh(ctx context.Context) (*models.Session, error) {
	current, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.Authentication("not_signed_in", "You are not signed in.")
	}

	var session models.Session
	if err := c.api.Do(ctx, http.MethodPost, "/api/v1/auth/refresh", nil, &session); err != nil {
		return nil, err
	}

	if err := c.store(&session); err != nil {
		return nil, err
	}
	c.emit(models.AuthEventTokenRefreshed, &session)
	return &session, nil
}

// SignOut forgets the session
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.store(nil); err != nil {
		return err
	}
	c.emit(models.AuthEventSignedOut, nil)
	return nil
}

// OnAuthStateChange registers a listener and returns its unsubscribe func
func (c *Client) OnAuthStateChange(fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(event models.AuthEvent, session *models.Session) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		var s *models.Session
		if session != nil {
			copied := *session
			s = &copied
		}
		fn(event, s)
	}
}

func (c *Client) store(session *models.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session == nil {
		if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove session: %w", err)
		}
		c.session = nil
		c.loaded = true
		return nil
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s := *session
	c.session = &s
	c.loaded = true
	return nil
}

func (c *Client) readSession() (*models.Session, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperrors.DataCorruption(err, "Saved session is corrupted. Please sign in again.")
	}
	return &session, nil
}
