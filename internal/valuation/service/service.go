// Package service computes yield projections and mark-to-market fraction
// values. All arithmetic is integer math with explicit flooring; big.Int
// intermediates keep products out of overflow range.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	oraclemodels "tessera/internal/oracle/models"
	registrymodels "tessera/internal/registry/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
)

// DefaultBaseAPY is the initial yield rate in basis points.
const DefaultBaseAPY int64 = 500

const basisPointDenominator = 10_000

// AssetReader resolves asset records for yield and valuation lookups.
type AssetReader interface {
	FindByID(ctx context.Context, assetID domain.AssetID) (*registrymodels.AssetRecord, error)
}

// PriceReader is the oracle's fresh-read path; stale or missing snapshots
// surface as errors, never as values.
type PriceReader interface {
	ReadFreshPrice(ctx context.Context, feedID domain.FeedID) (oraclemodels.PriceSnapshot, error)
}

// Service is the yield and fraction-value calculator. The base rate is one
// global policy value, adjustable by the authority at runtime.
type Service struct {
	mu      sync.RWMutex
	baseAPY int64

	assets AssetReader
	prices PriceReader
	admin  domain.AdminCapability
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithBaseAPY(basisPoints int64) Option {
	return func(s *Service) { s.baseAPY = basisPoints }
}

// New constructs the valuation service.
func New(assets AssetReader, prices PriceReader, admin domain.AdminCapability, opts ...Option) *Service {
	s := &Service{
		baseAPY: DefaultBaseAPY,
		assets:  assets,
		prices:  prices,
		admin:   admin,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// BaseAPY returns the current global rate in basis points.
func (s *Service) BaseAPY() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseAPY
}

// SetBaseAPY updates the global rate. Takes effect on the next calculation;
// nothing already computed is revised.
func (s *Service) SetBaseAPY(ctx context.Context, cap domain.AdminCapability, basisPoints int64) error {
	if !s.admin.Grants(cap) {
		return dErrors.New(dErrors.CodeForbidden, "authority capability required")
	}
	if basisPoints < 0 {
		return dErrors.New(dErrors.CodeInvalidParameters, "base APY must not be negative").
			With("basis_points", basisPoints)
	}
	s.mu.Lock()
	previous := s.baseAPY
	s.baseAPY = basisPoints
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "base APY updated",
		"previous_bps", previous,
		"current_bps", basisPoints,
	)
	return nil
}

// CalculateYield projects the simple-interest value of a principal held for
// the given duration against an existing asset. Partial days do not accrue.
// Returns principal + floor(principal * APY * days / (10000 * 365)).
func (s *Service) CalculateYield(ctx context.Context, assetID domain.AssetID, principalMinor int64, duration time.Duration) (int64, error) {
	if principalMinor <= 0 {
		return 0, dErrors.New(dErrors.CodeZeroPrincipal, "principal must be positive").
			With("principal_minor", principalMinor)
	}
	days := int64(duration / (24 * time.Hour))
	if days <= 0 {
		return 0, dErrors.New(dErrors.CodeZeroDuration, "duration must cover at least one full day").
			With("duration", duration.String())
	}

	if _, err := s.assets.FindByID(ctx, assetID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Newf(dErrors.CodeAssetNotFound, "asset %d does not exist", assetID)
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read asset record")
	}

	interest := new(big.Int).Mul(big.NewInt(principalMinor), big.NewInt(s.BaseAPY()))
	interest.Mul(interest, big.NewInt(days))
	interest.Div(interest, big.NewInt(basisPointDenominator*365))
	return principalMinor + interest.Int64(), nil
}

// PreviewFractionValue marks one fraction to market: the registered pro-rata
// value scaled by the price movement since mint, floored. The read is
// advisory and commits nothing.
func (s *Service) PreviewFractionValue(ctx context.Context, assetID domain.AssetID) (int64, error) {
	record, err := s.assets.FindByID(ctx, assetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, dErrors.Newf(dErrors.CodeAssetNotFound, "asset %d does not exist", assetID)
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read asset record")
	}

	snapshot, err := s.prices.ReadFreshPrice(ctx, record.MintedAtFeed)
	if err != nil {
		return 0, err
	}

	// floor(currentPrice * totalValueMinor / (mintedAtPrice * fractionCount))
	numerator := new(big.Int).Mul(big.NewInt(snapshot.Price), big.NewInt(record.TotalValueMinor))
	denominator := new(big.Int).Mul(big.NewInt(record.MintedAtPrice), big.NewInt(record.FractionCount))
	if denominator.Sign() == 0 {
		return 0, dErrors.New(dErrors.CodeInternal, "asset record has a zero mint price")
	}
	return new(big.Int).Div(numerator, denominator).Int64(), nil
}
