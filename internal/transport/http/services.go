package httptransport

import (
	"context"
	"time"

	eligibilitymodels "tessera/internal/eligibility/models"
	oraclemodels "tessera/internal/oracle/models"
	oraclesvc "tessera/internal/oracle/service"
	registrymodels "tessera/internal/registry/models"
	registrysvc "tessera/internal/registry/service"
	"tessera/pkg/domain"
)

// RegistryService is the registry surface the transport needs.
type RegistryService interface {
	IssueAsset(ctx context.Context, params registrysvc.IssueAssetParams) (domain.AssetID, error)
	PurchaseFraction(ctx context.Context, assetID domain.AssetID, buyer domain.Principal, amount, payment int64) (registrysvc.PurchaseResult, error)
	TransferFraction(ctx context.Context, assetID domain.AssetID, from, to domain.Principal, amount int64) error
	Recombine(ctx context.Context, assetID domain.AssetID, holder domain.Principal, amount int64) error
	GetAssetRecord(ctx context.Context, assetID domain.AssetID) (registrymodels.AssetRecord, bool, error)
	Balance(ctx context.Context, assetID domain.AssetID, holder domain.Principal) (int64, error)
}

// EligibilityService is the commitment gate surface.
type EligibilityService interface {
	RegisterCommitment(ctx context.Context, principal domain.Principal, hash domain.Hash32) error
	CheckEligible(ctx context.Context, principal domain.Principal) (bool, error)
	VerifyKnowledgeProof(ctx context.Context, principal domain.Principal, claimedCommitment domain.Hash32, proof eligibilitymodels.Proof) (bool, error)
	VerifyRangeProof(ctx context.Context, assetID domain.AssetID, holder domain.Principal, minRange, maxRange uint64, rangeCommitment domain.Hash32, proof []byte) (bool, error)
	RevokeCommitment(ctx context.Context, cap domain.AdminCapability, principal domain.Principal) error
}

// OracleService is the price cache surface.
type OracleService interface {
	IngestUpdate(ctx context.Context, feedID domain.FeedID, attestation []byte, feePaid int64) (oraclesvc.IngestResult, error)
	ReadFreshPrice(ctx context.Context, feedID domain.FeedID) (oraclemodels.PriceSnapshot, error)
	SetStalenessThreshold(cap domain.AdminCapability, d time.Duration) error
	AddSupportedFeed(cap domain.AdminCapability, feedID domain.FeedID) error
	RemoveSupportedFeed(cap domain.AdminCapability, feedID domain.FeedID) error
}

// ValuationService is the yield/valuation surface.
type ValuationService interface {
	CalculateYield(ctx context.Context, assetID domain.AssetID, principalMinor int64, duration time.Duration) (int64, error)
	PreviewFractionValue(ctx context.Context, assetID domain.AssetID) (int64, error)
	SetBaseAPY(ctx context.Context, cap domain.AdminCapability, basisPoints int64) error
}

// PolicyAdmin is the transfer policy's authority surface.
type PolicyAdmin interface {
	SetMinUnit(ctx context.Context, cap domain.AdminCapability, assetID domain.AssetID, minUnit int64) error
	SetLockupEnd(ctx context.Context, cap domain.AdminCapability, assetID domain.AssetID, lockupEnd time.Time) error
}
