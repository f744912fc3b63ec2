package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/service/token"
	"github.com/urfave/cli/v3"
)

// Auth holds CLI flags for bearer token verification
type Auth struct {
	jwksURI  string
	issuer   string
	audience string
}

// Flags returns CLI flags for auth configuration
func (a *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "auth-jwks-uri",
			Usage:       "JWKS URI for bearer token verification (auth disabled when empty)",
			Category:    "Authentication",
			Sources:     cli.EnvVars("RIVULET_AUTH_JWKS_URI"),
			Destination: &a.jwksURI,
		},
		&cli.StringFlag{
			Name:        "auth-issuer",
			Usage:       "Required token issuer",
			Category:    "Authentication",
			Sources:     cli.EnvVars("RIVULET_AUTH_ISSUER"),
			Destination: &a.issuer,
		},
		&cli.StringFlag{
			Name:        "auth-audience",
			Usage:       "Required token audience",
			Category:    "Authentication",
			Sources:     cli.EnvVars("RIVULET_AUTH_AUDIENCE"),
			Destination: &a.audience,
		},
	}
}

// IsConfigured reports whether token verification is enabled
func (a *Auth) IsConfigured() bool {
	return a.jwksURI != ""
}

// LogAttrs returns log attributes for the auth configuration
func (a *Auth) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("jwks_uri", a.jwksURI),
		slog.String("issuer", a.issuer),
		slog.String("audience", a.audience),
	}
}

// Configure builds a token verifier from the flags. Returns nil when auth is
// not configured.
func (a *Auth) Configure(ctx context.Context) (*token.Verifier, error) {
	if a.jwksURI == "" {
		return nil, nil
	}

	var opts []token.VerifierOption
	if a.issuer != "" {
		opts = append(opts, token.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, token.WithAudience(a.audience))
	}

	verifier, err := token.New(ctx, a.jwksURI, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure token verifier")
	}
	return verifier, nil
}
