package models

import (
	"time"

	"tessera/pkg/domain"
)

// PriceUpdate is the decoded result of a verified attestation. Produced only
// by an AttestationVerifier; the cache never constructs one from raw input.
type PriceUpdate struct {
	FeedID      domain.FeedID
	Price       int64
	Expo        int32
	Conf        uint64
	PublishedAt time.Time
}

// PriceSnapshot is the cached latest value for one feed, overwritten on every
// accepted update. Valid stays false until the first successful update.
//
// Price is a signed fixed-point value: real price = Price * 10^Expo.
type PriceSnapshot struct {
	FeedID      domain.FeedID `json:"feed_id"`
	Price       int64         `json:"price"`
	Expo        int32         `json:"expo"`
	Conf        uint64        `json:"conf"`
	PublishedAt time.Time     `json:"published_at"`
	Valid       bool          `json:"valid"`
}

// Age returns how long ago the snapshot was published.
func (s PriceSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.PublishedAt)
}
