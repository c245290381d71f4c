// Package attestation verifies signed price attestations. The cache treats
// verification as a black box: an attestation either decodes into a
// PriceUpdate or is rejected, so a stale or internally inconsistent blob can
// never reach the snapshot store.
package attestation

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tessera/internal/oracle/models"
	"tessera/pkg/domain"
)

// Claims is the JWT claim set carried by a publisher-signed attestation.
type Claims struct {
	Feed        string `json:"feed"`
	Price       int64  `json:"price"`
	Expo        int32  `json:"expo"`
	Conf        uint64 `json:"conf"`
	PublishedAt int64  `json:"published_at"` // unix seconds
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256-signed attestations against per-feed publisher
// secrets. A feed without a registered secret cannot produce valid updates.
type JWTVerifier struct {
	secrets map[domain.FeedID][]byte
}

func NewJWTVerifier(secrets map[domain.FeedID][]byte) *JWTVerifier {
	cp := make(map[domain.FeedID][]byte, len(secrets))
	for feed, secret := range secrets {
		cp[feed] = secret
	}
	return &JWTVerifier{secrets: cp}
}

// Verify checks the signature and claim shape of an attestation and decodes
// it. The signed feed claim must match the feed the caller is updating, so an
// attestation for one feed cannot be replayed against another.
func (v *JWTVerifier) Verify(feedID domain.FeedID, blob []byte) (models.PriceUpdate, error) {
	secret, ok := v.secrets[feedID]
	if !ok {
		return models.PriceUpdate{}, fmt.Errorf("no publisher secret for feed %q", feedID)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(string(blob), claims,
		func(token *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return models.PriceUpdate{}, fmt.Errorf("attestation signature: %w", err)
	}

	if claims.Feed != feedID.String() {
		return models.PriceUpdate{}, fmt.Errorf("attestation feed %q does not match %q", claims.Feed, feedID)
	}
	if claims.PublishedAt <= 0 {
		return models.PriceUpdate{}, fmt.Errorf("attestation has no publish time")
	}

	return models.PriceUpdate{
		FeedID:      feedID,
		Price:       claims.Price,
		Expo:        claims.Expo,
		Conf:        claims.Conf,
		PublishedAt: time.Unix(claims.PublishedAt, 0).UTC(),
	}, nil
}

// Sign produces an attestation for tests and local tooling. Production
// attestations come from the external oracle transport.
func Sign(feedID domain.FeedID, secret []byte, update models.PriceUpdate) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Feed:        feedID.String(),
		Price:       update.Price,
		Expo:        update.Expo,
		Conf:        update.Conf,
		PublishedAt: update.PublishedAt.Unix(),
	})
	return token.SignedString(secret)
}
