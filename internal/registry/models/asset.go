package models

import (
	"time"

	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// AssetRecord is the canonical registration of one tokenized asset.
//
// Invariants:
//   - TotalValueMinor ≥ 1 (smallest currency unit, integer)
//   - FractionCount ≥ 1
//   - MinFractionUnit ∈ [1, FractionCount]
//
// Created once at issuance and immutable thereafter; Verified is set during
// creation and never flipped back. MintedAtPrice/MintedAtExpo freeze the
// oracle value at issuance time and form the valuation baseline.
type AssetRecord struct {
	AssetID         domain.AssetID
	Issuer          domain.Principal
	DocumentHash    domain.Hash32
	TotalValueMinor int64
	FractionCount   int64
	MinFractionUnit int64
	MintedAtFeed    domain.FeedID
	MintedAtPrice   int64
	MintedAtExpo    int32
	MintedAt        time.Time
	Verified        bool
}

// NewAssetRecord validates issuance parameters and constructs the record.
// The asset id is assigned by the store on creation.
func NewAssetRecord(issuer domain.Principal, documentHash domain.Hash32, totalValueMinor, fractionCount, minFractionUnit int64, feed domain.FeedID, price int64, expo int32, now time.Time) (*AssetRecord, error) {
	if issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidParameters, "issuer is required")
	}
	if totalValueMinor < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidParameters, "total value must be at least 1 minor unit").
			With("total_value_minor", totalValueMinor)
	}
	if fractionCount < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidParameters, "fraction count must be at least 1").
			With("fraction_count", fractionCount)
	}
	if minFractionUnit < 1 || minFractionUnit > fractionCount {
		return nil, dErrors.New(dErrors.CodeInvalidParameters, "min fraction unit must be within [1, fraction count]").
			With("min_fraction_unit", minFractionUnit).
			With("fraction_count", fractionCount)
	}
	return &AssetRecord{
		Issuer:          issuer,
		DocumentHash:    documentHash,
		TotalValueMinor: totalValueMinor,
		FractionCount:   fractionCount,
		MinFractionUnit: minFractionUnit,
		MintedAtFeed:    feed,
		MintedAtPrice:   price,
		MintedAtExpo:    expo,
		MintedAt:        now,
		Verified:        true,
	}, nil
}
