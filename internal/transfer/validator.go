// Package transfer decides whether a candidate fraction movement is allowed
// under the asset's policy: minimum tradable unit and time-locked holding
// period. The decision is pure; the asset registry owns the actual mutation.
package transfer

import (
	"context"
	"errors"
	"time"

	"tessera/internal/transfer/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/requestcontext"
)

// SpecStore persists per-asset fraction specs.
type SpecStore interface {
	Get(ctx context.Context, assetID domain.AssetID) (models.FractionSpec, error)
	Put(ctx context.Context, spec models.FractionSpec) error
}

// Validator evaluates transfer policy.
type Validator struct {
	specs SpecStore
	admin domain.AdminCapability
}

func NewValidator(specs SpecStore, admin domain.AdminCapability) *Validator {
	return &Validator{specs: specs, admin: admin}
}

// CreateSpec stores the policy created at issuance.
func (v *Validator) CreateSpec(ctx context.Context, spec models.FractionSpec) error {
	if spec.TotalSupply < 1 {
		return dErrors.New(dErrors.CodeInvalidParameters, "total supply must be at least 1").
			With("total_supply", spec.TotalSupply)
	}
	if spec.MinUnit < 1 || spec.MinUnit > spec.TotalSupply {
		return dErrors.New(dErrors.CodeInvalidParameters, "min unit must be within [1, total supply]").
			With("min_unit", spec.MinUnit).
			With("total_supply", spec.TotalSupply)
	}
	if err := v.specs.Put(ctx, spec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store fraction spec")
	}
	return nil
}

// Spec returns the policy for an asset and whether one exists.
func (v *Validator) Spec(ctx context.Context, assetID domain.AssetID) (models.FractionSpec, bool, error) {
	spec, err := v.specs.Get(ctx, assetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.FractionSpec{}, false, nil
	}
	if err != nil {
		return models.FractionSpec{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read fraction spec")
	}
	return spec, true, nil
}

// IsAllowed reports whether moving amount fractions of the asset is permitted
// right now. An asset without a spec is unconstrained (default-open).
func (v *Validator) IsAllowed(ctx context.Context, assetID domain.AssetID, amount int64) (bool, error) {
	err := v.AssertAllowed(ctx, assetID, amount)
	if err == nil {
		return true, nil
	}
	if dErrors.HasCode(err, dErrors.CodeBelowMinimumUnit) || dErrors.HasCode(err, dErrors.CodeLockupActive) {
		return false, nil
	}
	return false, err
}

// AssertAllowed is IsAllowed with the specific refusal reason, for callers
// that must propagate it.
func (v *Validator) AssertAllowed(ctx context.Context, assetID domain.AssetID, amount int64) error {
	spec, exists, err := v.Spec(ctx, assetID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if amount < spec.MinUnit {
		return dErrors.New(dErrors.CodeBelowMinimumUnit, "amount below minimum tradable unit").
			With("amount", amount).
			With("min_unit", spec.MinUnit)
	}
	now := requestcontext.Now(ctx)
	if spec.Locked(now) {
		return dErrors.New(dErrors.CodeLockupActive, "asset is in its lockup window").
			With("now", now.UTC().Format(time.RFC3339)).
			With("lockup_end", spec.LockupEnd.UTC().Format(time.RFC3339))
	}
	return nil
}

// AssertRecombinable requires the amount to be the complete fraction set:
// recombination produces exactly one indivisible whole-asset unit, so a
// partial recombination is rejected.
func (v *Validator) AssertRecombinable(ctx context.Context, assetID domain.AssetID, amount int64) (models.FractionSpec, error) {
	spec, exists, err := v.Spec(ctx, assetID)
	if err != nil {
		return models.FractionSpec{}, err
	}
	if !exists {
		return models.FractionSpec{}, dErrors.Newf(dErrors.CodeAssetNotFound, "no fraction spec for asset %d", assetID)
	}
	if amount != spec.TotalSupply {
		return models.FractionSpec{}, dErrors.New(dErrors.CodeTransferRejected, "recombination requires the complete fraction set").
			With("amount", amount).
			With("total_supply", spec.TotalSupply)
	}
	return spec, nil
}

// SetMinUnit adjusts the minimum tradable unit. Takes effect immediately for
// every subsequent check.
func (v *Validator) SetMinUnit(ctx context.Context, cap domain.AdminCapability, assetID domain.AssetID, minUnit int64) error {
	if !v.admin.Grants(cap) {
		return dErrors.New(dErrors.CodeForbidden, "spec changes require the admin capability")
	}
	spec, exists, err := v.Spec(ctx, assetID)
	if err != nil {
		return err
	}
	if !exists {
		return dErrors.Newf(dErrors.CodeAssetNotFound, "no fraction spec for asset %d", assetID)
	}
	if minUnit < 1 || minUnit > spec.TotalSupply {
		return dErrors.New(dErrors.CodeInvalidParameters, "min unit must be within [1, total supply]").
			With("min_unit", minUnit).
			With("total_supply", spec.TotalSupply)
	}
	spec.MinUnit = minUnit
	if err := v.specs.Put(ctx, spec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store fraction spec")
	}
	return nil
}

// SetLockupEnd extends or shortens the lockup window. No grandfathering: an
// in-flight operation either completes under the new rule or fails.
func (v *Validator) SetLockupEnd(ctx context.Context, cap domain.AdminCapability, assetID domain.AssetID, lockupEnd time.Time) error {
	if !v.admin.Grants(cap) {
		return dErrors.New(dErrors.CodeForbidden, "spec changes require the admin capability")
	}
	spec, exists, err := v.Spec(ctx, assetID)
	if err != nil {
		return err
	}
	if !exists {
		return dErrors.Newf(dErrors.CodeAssetNotFound, "no fraction spec for asset %d", assetID)
	}
	spec.LockupEnd = lockupEnd
	if err := v.specs.Put(ctx, spec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store fraction spec")
	}
	return nil
}
