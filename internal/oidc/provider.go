// Package oidc is the external identity provider client used by the
// federated gate: an authorization-code flow with PKCE followed by a
// userinfo lookup.
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/gatehouse/gatehouse/internal/session"
)

// Default endpoints target Google's OpenID Connect deployment.
const (
	DefaultAuthURL       = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultTokenURL      = "https://oauth2.googleapis.com/token"
	DefaultUserInfoURL   = "https://openidconnect.googleapis.com/v1/userinfo"
	DefaultEndSessionURL = "https://accounts.google.com/Logout"
)

// Provider errors.
var (
	ErrExchange = errors.New("token exchange failed")
	ErrUserInfo = errors.New("userinfo request failed")
)

// maxUserInfoBytes bounds the userinfo response body.
const maxUserInfoBytes = 1 << 20

// Config holds the OAuth client registration.
type Config struct {
	Name          string
	ClientID      string
	ClientSecret  string
	AuthURL       string
	TokenURL      string
	UserInfoURL   string
	RedirectURL   string
	EndSessionURL string
	Scopes        []string
}

// Provider performs the authorization-code exchange and turns the
// provider's userinfo into a session.External.
type Provider struct {
	name          string
	oauth         *oauth2.Config
	userInfoURL   string
	endSessionURL string
	httpClient    *http.Client
}

// New creates a Provider. Empty endpoint fields fall back to the defaults.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("oidc client id is required")
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errors.New("oidc redirect url is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	name := cfg.Name
	if name == "" {
		name = "google"
	}

	return &Provider{
		name: name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   firstNonEmpty(cfg.AuthURL, DefaultAuthURL),
				TokenURL:  firstNonEmpty(cfg.TokenURL, DefaultTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      scopes,
		},
		userInfoURL:   firstNonEmpty(cfg.UserInfoURL, DefaultUserInfoURL),
		endSessionURL: firstNonEmpty(cfg.EndSessionURL, DefaultEndSessionURL),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// WithHTTPClient replaces the client used for token and userinfo calls.
func (p *Provider) WithHTTPClient(c *http.Client) *Provider {
	p.httpClient = c
	return p
}

// Name returns the provider label stored on external sessions.
func (p *Provider) Name() string { return p.name }

// AuthCodeURL returns the provider redirect for a new login.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// EndSessionURL returns the provider logout URL, or "" if none is configured.
func (p *Provider) EndSessionURL() string {
	return p.endSessionURL
}

// Exchange redeems code and fetches the user's profile. An email the
// provider marks unverified is dropped, leaving an External with no usable
// identity.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*session.External, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	info, err := p.fetchUserInfo(ctx, tok)
	if err != nil {
		return nil, err
	}

	ext := &session.External{Provider: p.name, Subject: info.Sub}
	if info.verified() {
		ext.EmailAddress = strings.TrimSpace(info.Email)
	}
	return ext, nil
}

type userInfo struct {
	Sub           string          `json:"sub"`
	Email         string          `json:"email"`
	EmailVerified json.RawMessage `json:"email_verified"`
}

// verified treats a missing claim as verified and accepts both the boolean
// and the string encodings some providers use.
func (u userInfo) verified() bool {
	switch strings.Trim(strings.TrimSpace(string(u.EmailVerified)), `"`) {
	case "false":
		return false
	default:
		return true
	}
}

func (p *Provider) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return userInfo{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return userInfo{}, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return userInfo{}, fmt.Errorf("%w: status %d", ErrUserInfo, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return userInfo{}, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	return info, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
