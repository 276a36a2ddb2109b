package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"ms-reviews/internal/config"
)

var (
	ErrMissingToken = errors.New("authorization header is missing")
	ErrMalformed    = errors.New("authorization header format must be 'Bearer {token}'")
)

// Identity is what a verified bearer token says about its holder.
type Identity struct {
	UserID string
	Roles  []string
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Verifier turns a raw bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformed
	}
	return parts[1], nil
}

// claims covers Keycloak-style realm roles as well as a flat roles list.
type claims struct {
	jwt.RegisteredClaims
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	Roles []string `json:"roles,omitempty"`
}

func (c *claims) identity() (Identity, error) {
	if c.Subject == "" {
		return Identity{}, errors.New("subject claim not found in token")
	}
	roles := append([]string{}, c.RealmAccess.Roles...)
	roles = append(roles, c.Roles...)
	return Identity{UserID: c.Subject, Roles: roles}, nil
}

// OIDCVerifier checks tokens against an OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider for %s: %w", issuer, err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{
			ClientID:          clientID,
			SkipClientIDCheck: clientID == "",
		}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	var c claims
	if err := idToken.Claims(&c); err != nil {
		return Identity{}, fmt.Errorf("failed to parse claims: %w", err)
	}
	c.Subject = idToken.Subject
	return c.identity()
}

// HMACVerifier checks HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(rawToken, &c, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	return c.identity()
}

// SignHMAC issues a token HMACVerifier accepts.
func SignHMAC(secret, subject string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// NewVerifier builds the verifier selected by cfg.Mode.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (Verifier, error) {
	switch cfg.Mode {
	case "hmac":
		if cfg.HMACSecret == "" {
			return nil, errors.New("AUTH_HMAC_SECRET not set")
		}
		return NewHMACVerifier(cfg.HMACSecret), nil
	case "oidc", "":
		if cfg.IssuerURL == "" {
			return nil, errors.New("OIDC_ISSUER not set")
		}
		return NewOIDCVerifier(ctx, cfg.IssuerURL, cfg.ClientID)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
