package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var httpTimeout = 10 * time.Second

// Auth and validation failures the UI maps to localized messages. They
// recover locally: the form stays open, nothing retries.
var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrWeakPassword       = errors.New("password too weak")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrProfileNotFound    = errors.New("profile not found")
	errUnauthorized       = errors.New("unauthorized")
)

// BackendClient talks to the managed backend that owns all durable
// state: auth, profiles and the message table. The realtime channel and
// object storage have their own clients.
type BackendClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewBackendClient builds a client for the given API base URL, without
// a session.
func NewBackendClient(baseURL string) *BackendClient {
	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// SetToken installs the session access token used on subsequent calls.
func (c *BackendClient) SetToken(token string) { c.token = token }

// Token returns the current access token, empty when signed out.
func (c *BackendClient) Token() string { return c.token }

type authResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"user"`
}

// SignUp registers a new account and returns the fresh session. The
// caller still has to create the profile row.
func (c *BackendClient) SignUp(ctx context.Context, email, password string) (Session, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/auth/signup", payload, &resp); err != nil {
		return Session{}, mapAuthError(err)
	}
	return c.installSession(resp)
}

// SignIn exchanges credentials for a session.
func (c *BackendClient) SignIn(ctx context.Context, email, password string) (Session, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/auth/signin", payload, &resp); err != nil {
		return Session{}, mapAuthError(err)
	}
	return c.installSession(resp)
}

// SignOut revokes the session server-side and forgets the token either way.
func (c *BackendClient) SignOut(ctx context.Context) error {
	err := c.doJSONRequest(ctx, http.MethodPost, "/auth/signout", nil, nil)
	c.token = ""
	return err
}

// CurrentSession rebuilds the session from the held token. ok is false
// when there is no token or it has expired.
func (c *BackendClient) CurrentSession() (Session, bool) {
	if c.token == "" {
		return Session{}, false
	}
	session, err := sessionFromToken(c.token)
	if err != nil || session.Expired(time.Now()) {
		return Session{}, false
	}
	return session, true
}

func (c *BackendClient) installSession(resp authResponse) (Session, error) {
	session, err := sessionFromToken(resp.AccessToken)
	if err != nil {
		return Session{}, err
	}
	if session.UserID == "" {
		session.UserID = resp.User.ID
	}
	if session.Email == "" {
		session.Email = resp.User.Email
	}
	c.token = resp.AccessToken
	return session, nil
}

// sessionFromToken decodes the access token's claims. The client never
// holds the signing secret, so the claims are read unverified; the
// backend re-checks the signature on every request anyway.
func sessionFromToken(token string) (Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("decode session token: %w", err)
	}
	session := Session{AccessToken: token}
	if sub, err := claims.GetSubject(); err == nil {
		session.UserID = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time
	}
	if email, ok := claims["email"].(string); ok {
		session.Email = email
	}
	return session, nil
}

// CreateProfile inserts the profile row right after sign-up.
func (c *BackendClient) CreateProfile(ctx context.Context, userID, username, email string) error {
	payload := map[string]string{
		"user_id":      userID,
		"username":     username,
		"email":        email,
		"avatar_color": defaultAvatarColor,
	}
	if err := c.doJSONRequest(ctx, http.MethodPost, "/profiles", payload, nil); err != nil {
		return mapProfileError(err, username)
	}
	return nil
}

// ProfileByUserID fetches one profile snapshot. ErrProfileNotFound when
// the row does not exist.
func (c *BackendClient) ProfileByUserID(ctx context.Context, userID string) (Profile, error) {
	var prof Profile
	path := "/profiles/" + url.PathEscape(userID)
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &prof); err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) && reqErr.status == http.StatusNotFound {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, err
	}
	return prof, nil
}

// UpdateProfile saves the username and avatar color.
func (c *BackendClient) UpdateProfile(ctx context.Context, userID, username, avatarColor string) error {
	payload := map[string]string{"username": username, "avatar_color": avatarColor}
	path := "/profiles/" + url.PathEscape(userID)
	if err := c.doJSONRequest(ctx, http.MethodPatch, path, payload, nil); err != nil {
		return mapProfileError(err, username)
	}
	return nil
}

// MessagesBefore fetches one history page ordered newest-first. A zero
// cursor means the newest page; otherwise strictly older than the
// cursor, which stays correct under concurrent inserts.
func (c *BackendClient) MessagesBefore(ctx context.Context, before time.Time, limit int) ([]Message, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", limit))
	if !before.IsZero() {
		query.Set("before", before.Format(time.RFC3339Nano))
	}
	var page []Message
	if err := c.doJSONRequest(ctx, http.MethodGet, "/messages?"+query.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// InsertMessage asks the backend to persist a new message. The client
// does not insert optimistically: the message shows up when its
// realtime insert event round-trips back.
func (c *BackendClient) InsertMessage(ctx context.Context, out OutgoingMessage) error {
	return c.doJSONRequest(ctx, http.MethodPost, "/messages", out, nil)
}

// MarkDeleted soft-deletes a message. Ownership is enforced by the
// caller before this is ever reached, and again by the backend.
func (c *BackendClient) MarkDeleted(ctx context.Context, id string) error {
	payload := map[string]bool{"is_deleted": true}
	path := "/messages/" + url.PathEscape(id)
	return c.doJSONRequest(ctx, http.MethodPatch, path, payload, nil)
}

// requestError keeps the HTTP status and the backend's message so the
// auth error mapping can inspect both.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.status, e.message)
}

// mapAuthError translates backend messages into the auth taxonomy the
// way the backend actually phrases them; anything unrecognized stays an
// unknown error for the generic notice.
func mapAuthError(err error) error {
	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		return err
	}
	msg := strings.ToLower(reqErr.message)
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "already registered"):
		return ErrEmailInUse
	case strings.Contains(msg, "invalid login credentials"):
		return ErrInvalidCredentials
	case strings.Contains(msg, "password"):
		return ErrWeakPassword
	case strings.Contains(msg, "email"):
		return ErrInvalidEmail
	default:
		return err
	}
}

func mapProfileError(err error, username string) error {
	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		return err
	}
	msg := strings.ToLower(reqErr.message)
	switch {
	case strings.Contains(msg, "duplicate key") && strings.Contains(msg, "username"):
		return ErrDuplicateUsername
	case strings.Contains(msg, "duplicate key"):
		return ErrEmailInUse
	default:
		return err
	}
}

func (c *BackendClient) doJSONRequest(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &requestError{status: resp.StatusCode, message: readResponseError(resp.Body)}
	}
	if out != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func readResponseError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err == nil {
		if msg, ok := parsed["error"]; ok {
			return msg
		}
		if msg, ok := parsed["message"]; ok {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}
