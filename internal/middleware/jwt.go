package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/config"
	"github.com/iliyamo/trip-marketplace/internal/model"
)

// Errors returned by TokenVerifier.Verify.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// tokenClaims covers both issuers: the identity provider puts the email in
// an "email" claim, and so do session tokens.
type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer tokens from the two trusted issuers:
// RS256 tokens of the identity provider, whose keys come from its JWKS
// endpoint, and HS256 session tokens minted by this service after an OTP
// login.  Verification is stateless.
type TokenVerifier struct {
	providerKeys  jwt.Keyfunc
	issuer        string
	audience      string
	sessionSecret []byte
	sessionIssuer string
}

// NewTokenVerifier builds a verifier.  providerKeys resolves RSA keys by
// kid; in production it is the JWKS keyfunc.
func NewTokenVerifier(providerKeys jwt.Keyfunc, cfg config.AuthConfig) *TokenVerifier {
	return &TokenVerifier{
		providerKeys:  providerKeys,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		sessionSecret: []byte(cfg.SessionSecret),
		sessionIssuer: cfg.SessionIssuer,
	}
}

// Verify checks signature, expiry, issuer and audience and returns the
// authenticated identity.
func (v *TokenVerifier) Verify(raw string) (model.Authenticated, error) {
	var claims tokenClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, v.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return model.Authenticated{}, ErrInvalidToken
	}

	// Each signing method is bound to its issuer so a session token can
	// never pass as a provider token or the other way round.
	switch tok.Method.Alg() {
	case jwt.SigningMethodRS256.Alg():
		if claims.Issuer != v.issuer || !slices.Contains(claims.Audience, v.audience) {
			return model.Authenticated{}, ErrInvalidToken
		}
	case jwt.SigningMethodHS256.Alg():
		if claims.Issuer != v.sessionIssuer {
			return model.Authenticated{}, ErrInvalidToken
		}
	}
	if claims.Subject == "" {
		return model.Authenticated{}, ErrInvalidToken
	}
	return model.Authenticated{UserID: claims.Subject, Email: model.NormalizeEmail(claims.Email)}, nil
}

func (v *TokenVerifier) keyFor(t *jwt.Token) (interface{}, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodRSA:
		if v.providerKeys == nil {
			return nil, ErrInvalidToken
		}
		return v.providerKeys(t)
	case *jwt.SigningMethodHMAC:
		if len(v.sessionSecret) == 0 {
			return nil, ErrInvalidToken
		}
		return v.sessionSecret, nil
	}
	return nil, ErrInvalidToken
}

// bearer extracts the raw token from the Authorization header.
func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if auth == "" {
		return "", false
	}
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	return strings.TrimSpace(raw), ok
}

// Auth requires a valid bearer token and stores the authenticated identity
// in the context.
func Auth(v *TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok || raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": ErrMissingToken.Error()})
			}
			id, err := v.Verify(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}

// OptionalAuth treats requests without an Authorization header as guests.
// A header that is present but invalid is still rejected.
func OptionalAuth(v *TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok && c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				SetIdentity(c, model.Guest{})
				return next(c)
			}
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": ErrInvalidToken.Error()})
			}
			id, err := v.Verify(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}
