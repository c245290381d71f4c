package models

import (
	"time"

	"tessera/pkg/domain"
)

// FractionSpec is the per-asset transfer policy, created at issuance
// alongside the asset record. TotalSupply is immutable; MinUnit and LockupEnd
// are authority-mutable and apply immediately to every holder, including the
// original issuer.
type FractionSpec struct {
	AssetID     domain.AssetID
	TotalSupply int64
	MinUnit     int64
	LockupEnd   time.Time
}

// Locked reports whether the lockup window is still open at now.
func (s FractionSpec) Locked(now time.Time) bool {
	return now.Before(s.LockupEnd)
}
