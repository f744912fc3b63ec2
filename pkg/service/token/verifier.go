package token

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
)

// Verifier validates bearer tokens against a JWKS key set and returns the
// token subject. It holds the key set fetched at construction time.
type Verifier struct {
	keySet   jwk.Set
	issuer   string
	audience string
}

// VerifierOption is a functional option for Verifier
type VerifierOption func(*Verifier)

// WithIssuer requires the token iss claim to match
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) {
		v.issuer = issuer
	}
}

// WithAudience requires the token aud claim to contain the value
func WithAudience(audience string) VerifierOption {
	return func(v *Verifier) {
		v.audience = audience
	}
}

// New fetches the JWKS from the given URI and builds a Verifier
func New(ctx context.Context, jwksURI string, options ...VerifierOption) (*Verifier, error) {
	keySet, err := jwk.Fetch(ctx, jwksURI)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch JWKS", goerr.V("jwks_uri", jwksURI))
	}

	return NewWithKeySet(keySet, options...), nil
}

// NewWithKeySet builds a Verifier from an already loaded key set
func NewWithKeySet(keySet jwk.Set, options ...VerifierOption) *Verifier {
	v := &Verifier{keySet: keySet}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Verify parses and validates the raw token and returns its subject
func (v *Verifier) Verify(ctx context.Context, raw string) (string, error) {
	opts := []jwt.ParseOption{
		jwt.WithContext(ctx),
		jwt.WithKeySet(v.keySet),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(10 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	tok, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to verify token")
	}

	sub := tok.Subject()
	if sub == "" {
		return "", goerr.New("token has no subject")
	}

	return sub, nil
}
