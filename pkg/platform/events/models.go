// Package events defines the domain events emitted by the issuance/trading
// core. Events are the only durable, externally observable record of state
// changes: every successful mutating operation emits exactly one event, and
// failed operations emit nothing.
package events

import (
	"time"

	"tessera/pkg/domain"
)

// Type names a domain event.
type Type string

const (
	TypeAssetIssued          Type = "asset_issued"
	TypeFractionPurchased    Type = "fraction_purchased"
	TypeFractionTransferred  Type = "fraction_transferred"
	TypeWholeAssetRecombined Type = "whole_asset_recombined"
	TypeCommitmentRegistered Type = "commitment_registered"
	TypeCommitmentRevoked    Type = "commitment_revoked"
	TypePriceUpdated         Type = "price_updated"
)

// Event captures one state change with the full set of changed fields. Keep it
// transport-agnostic so stores and sinks can fan out. Fields not relevant to a
// given type stay zero.
type Event struct {
	Type      Type
	Timestamp time.Time
	RequestID string

	// Ledger fields.
	AssetID         domain.AssetID
	Issuer          domain.Principal
	From            domain.Principal
	To              domain.Principal
	Amount          int64
	Cost            int64
	DocumentHash    domain.Hash32
	TotalValueMinor int64
	FractionCount   int64

	// Eligibility fields.
	Principal      domain.Principal
	CommitmentHash domain.Hash32

	// Oracle fields.
	FeedID      domain.FeedID
	Price       int64
	Expo        int32
	Confidence  uint64
	PublishedAt time.Time
}
