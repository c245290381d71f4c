package domain

import (
	"encoding/hex"
	"strings"

	dErrors "tessera/pkg/domain-errors"
)

// Principal identifies an actor in the system: an issuer, a holder, or the
// operator. Principals arrive from the trust boundary as opaque account
// strings; we validate shape, not provenance.
type Principal string

// ParsePrincipal validates and returns a Principal.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidParameters, "principal cannot be empty")
	}
	if len(s) > 128 {
		return "", dErrors.New(dErrors.CodeInvalidParameters, "principal must be 128 characters or less")
	}
	return Principal(s), nil
}

func (p Principal) String() string { return string(p) }

// IsNil returns true if the principal is empty.
func (p Principal) IsNil() bool { return p == "" }

// AssetID identifies a registered asset. IDs are allocated sequentially by
// the asset store starting at 1; 0 is the nil value.
type AssetID uint64

// WholeOffset derives the id of the indivisible whole-asset unit minted by
// recombination. The offset keeps fractional and whole id spaces disjoint as
// long as fewer than 2^32 assets are ever issued.
const WholeOffset AssetID = 1 << 32

// Whole returns the derived whole-asset id for a fractional asset.
func (a AssetID) Whole() AssetID { return a + WholeOffset }

// IsNil returns true if the asset id is unallocated.
func (a AssetID) IsNil() bool { return a == 0 }

// FeedID names a price feed on the oracle cache, e.g. "RWA-REIT/USD".
type FeedID string

// ParseFeedID validates and returns a FeedID.
func ParseFeedID(s string) (FeedID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidParameters, "feed id cannot be empty")
	}
	return FeedID(s), nil
}

func (f FeedID) String() string { return string(f) }

// Hash32 is a 32-byte digest: document hashes and commitment hashes.
type Hash32 [32]byte

// ParseHash32 decodes a hex-encoded 32-byte digest.
func ParseHash32(s string) (Hash32, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Hash32{}, dErrors.New(dErrors.CodeInvalidParameters, "hash must be hex encoded")
	}
	if len(raw) != 32 {
		return Hash32{}, dErrors.New(dErrors.CodeInvalidParameters, "hash must be exactly 32 bytes")
	}
	var h Hash32
	copy(h[:], raw)
	return h, nil
}

func (h Hash32) String() string { return hex.EncodeToString(h[:]) }

// IsZero returns true if every byte of the digest is zero.
func (h Hash32) IsZero() bool { return h == Hash32{} }
