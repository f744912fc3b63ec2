package token_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/gt"
	"github.com/rivulet-lab/rivulet/pkg/service/token"
)

type signer struct {
	private jwk.Key
	public  jwk.Set
}

func newSigner(t *testing.T) *signer {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	gt.NoError(t, err).Required()

	private, err := jwk.FromRaw(raw)
	gt.NoError(t, err).Required()
	gt.NoError(t, private.Set(jwk.KeyIDKey, "test-key")).Required()
	gt.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256)).Required()

	public, err := private.PublicKey()
	gt.NoError(t, err).Required()

	set := jwk.NewSet()
	gt.NoError(t, set.AddKey(public)).Required()

	return &signer{private: private, public: set}
}

func (s *signer) sign(t *testing.T, tok jwt.Token) string {
	t.Helper()
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, s.private))
	gt.NoError(t, err).Required()
	return string(signed)
}

func TestVerifier(t *testing.T) {
	ctx := context.Background()
	s := newSigner(t)

	newToken := func(t *testing.T) jwt.Token {
		t.Helper()
		tok, err := jwt.NewBuilder().
			Subject("user-123").
			Issuer("https://issuer.example.com").
			Audience([]string{"rivulet"}).
			IssuedAt(time.Now()).
			Expiration(time.Now().Add(time.Hour)).
			Build()
		gt.NoError(t, err).Required()
		return tok
	}

	t.Run("valid token returns subject", func(t *testing.T) {
		v := token.NewWithKeySet(s.public,
			token.WithIssuer("https://issuer.example.com"),
			token.WithAudience("rivulet"))

		sub, err := v.Verify(ctx, s.sign(t, newToken(t)))
		gt.NoError(t, err).Required()
		gt.Value(t, sub).Equal("user-123")
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		tok, err := jwt.NewBuilder().
			Subject("user-123").
			IssuedAt(time.Now().Add(-2 * time.Hour)).
			Expiration(time.Now().Add(-time.Hour)).
			Build()
		gt.NoError(t, err).Required()

		v := token.NewWithKeySet(s.public)
		_, verr := v.Verify(ctx, s.sign(t, tok))
		gt.Error(t, verr)
	})

	t.Run("token expired within clock skew is accepted", func(t *testing.T) {
		tok, err := jwt.NewBuilder().
			Subject("user-123").
			IssuedAt(time.Now().Add(-time.Hour)).
			Expiration(time.Now().Add(-5 * time.Second)).
			Build()
		gt.NoError(t, err).Required()

		v := token.NewWithKeySet(s.public)
		sub, verr := v.Verify(ctx, s.sign(t, tok))
		gt.NoError(t, verr).Required()
		gt.Value(t, sub).Equal("user-123")
	})

	t.Run("wrong audience is rejected", func(t *testing.T) {
		v := token.NewWithKeySet(s.public, token.WithAudience("someone-else"))
		_, err := v.Verify(ctx, s.sign(t, newToken(t)))
		gt.Error(t, err)
	})

	t.Run("token signed by unknown key is rejected", func(t *testing.T) {
		other := newSigner(t)
		v := token.NewWithKeySet(s.public)
		_, err := v.Verify(ctx, other.sign(t, newToken(t)))
		gt.Error(t, err)
	})

	t.Run("token without subject is rejected", func(t *testing.T) {
		tok, err := jwt.NewBuilder().
			Expiration(time.Now().Add(time.Hour)).
			Build()
		gt.NoError(t, err).Required()

		v := token.NewWithKeySet(s.public)
		_, verr := v.Verify(ctx, s.sign(t, tok))
		gt.Error(t, verr)
	})
}
