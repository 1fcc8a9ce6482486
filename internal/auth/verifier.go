package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// ErrUnauthorized covers every credential failure: missing, malformed,
// expired, badly signed, or lacking a user identifier. Callers treat
// all of them the same way, so they are not distinguished further.
var ErrUnauthorized = errors.New("unauthorized")

// Verifier turns a credential token presented at connection time into
// a verified user identifier.
type Verifier interface {
	Verify(token string) (string, error)
}

type jwtVerifier struct {
	logger     zerolog.Logger
	issuer     string
	signingKey []byte
}

// NewJWTVerifier builds a Verifier for HS256 tokens signed with the
// externally supplied key. The key always comes from configuration;
// there is no default.
func NewJWTVerifier(
	logger zerolog.Logger,
	issuer string,
	signingKey []byte,
) Verifier {
	return &jwtVerifier{
		logger:     logger,
		issuer:     issuer,
		signingKey: signingKey,
	}
}

func (v *jwtVerifier) Verify(token string) (string, error) {
	if token == "" {
		v.logger.Warn().Msg("missing credential token")
		return "", ErrUnauthorized
	}

	t, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
			}
			return v.signingKey, nil
		},
		jwt.WithIssuer(v.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Warn().
			Err(err).
			Msg("failed to verify credential token")
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := t.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		v.logger.Warn().Msg("credential token has no user id")
		return "", ErrUnauthorized
	}

	v.logger.Debug().
		Str("user_id", claims.Subject).
		Msg("verified credential token")
	return claims.Subject, nil
}
