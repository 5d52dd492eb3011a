package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/sha3"
)

// DefaultTTL is how long a signed request stays valid.
const DefaultTTL = time.Minute

var (
	// ErrReplay is returned when a token's nonce has already been used.
	ErrReplay = errors.New("request token already used")

	// ErrMismatch is returned when a token was signed for a different op or body.
	ErrMismatch = errors.New("request token does not match request")
)

// Claims are the JWT claims of a signed operation request.
type Claims struct {
	jwt.RegisteredClaims
	Op       string `json:"op"`
	BodyHash string `json:"body_sha3"`
}

// BodyHash returns the hex SHA3-256 digest a token binds the request body to.
func BodyHash(body []byte) string {
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Sign produces a bearer token authorising op with exactly this body.
func Sign(priv ed25519.PrivateKey, op string, body []byte, now time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   Identity(priv).String(),
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Op:       op,
		BodyHash: BodyHash(body),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return signed, nil
}

// Verifier checks request tokens and records their nonces so each token is
// accepted once.
type Verifier struct {
	rdb      redis.Cmdable
	instance string
	maxSkew  time.Duration
	now      func() time.Time
	nonceTTL time.Duration
}

// NewVerifier creates a verifier storing nonces in rdb under the instance namespace.
// maxSkew is the tolerated clock difference between signer and server.
func NewVerifier(rdb redis.Cmdable, instance string, maxSkew time.Duration) *Verifier {
	return &Verifier{
		rdb:      rdb,
		instance: instance,
		maxSkew:  maxSkew,
		now:      time.Now,
		nonceTTL: DefaultTTL + 2*maxSkew,
	}
}

// WithClock overrides the verifier's time source. Used by tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify checks the token's signature, expiry, op and body binding, then burns
// its nonce. Returns the signer's identity.
func (v *Verifier) Verify(ctx context.Context, token, op string, body []byte) (address.Address, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithLeeway(v.maxSkew),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)

	var signer address.Address
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		c, ok := t.Claims.(*Claims)
		if !ok {
			return nil, fmt.Errorf("unexpected claims type %T", t.Claims)
		}
		a, err := address.Parse(c.Subject)
		if err != nil {
			return nil, fmt.Errorf("invalid subject: %w", err)
		}
		signer = a
		return PublicKey(a), nil
	})
	if err != nil {
		return address.Zero, fmt.Errorf("invalid request token: %w", err)
	}

	if claims.Op != op || claims.BodyHash != BodyHash(body) {
		return address.Zero, ErrMismatch
	}
	if claims.ID == "" {
		return address.Zero, fmt.Errorf("invalid request token: missing jti")
	}

	fresh, err := v.rdb.SetNX(ctx, ledger.NonceKey(v.instance, claims.ID), signer.String(), v.nonceTTL).Result()
	if err != nil {
		return address.Zero, fmt.Errorf("failed to record request nonce: %w", err)
	}
	if !fresh {
		return address.Zero, ErrReplay
	}
	return signer, nil
}
