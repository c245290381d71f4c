// Package service implements the asset registry and fractional ledger: the
// top of the core. Every mutating operation validates all preconditions
// first, mutates last, and emits exactly one domain event on success.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	oraclemodels "tessera/internal/oracle/models"
	registrymetrics "tessera/internal/registry/metrics"
	"tessera/internal/registry/models"
	transfermodels "tessera/internal/transfer/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/events"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

// AssetStore persists asset records and allocates ids.
type AssetStore interface {
	Create(ctx context.Context, record *models.AssetRecord) error
	FindByID(ctx context.Context, assetID domain.AssetID) (*models.AssetRecord, error)
}

// BalanceStore is the canonical balance table.
type BalanceStore interface {
	Get(ctx context.Context, assetID domain.AssetID, holder domain.Principal) (int64, error)
	Set(ctx context.Context, assetID domain.AssetID, holder domain.Principal, amount int64) error
	ListByAsset(ctx context.Context, assetID domain.AssetID) (map[domain.Principal]int64, error)
}

// EligibilityGate is the cheap existence check run on every mutating call.
type EligibilityGate interface {
	CheckEligible(ctx context.Context, principal domain.Principal) (bool, error)
}

// PriceReader is the oracle cache's fresh-read path, the only price source
// issuance uses.
type PriceReader interface {
	ReadFreshPrice(ctx context.Context, feedID domain.FeedID) (oraclemodels.PriceSnapshot, error)
}

// TransferPolicy is the transfer/lockup validator.
type TransferPolicy interface {
	CreateSpec(ctx context.Context, spec transfermodels.FractionSpec) error
	AssertAllowed(ctx context.Context, assetID domain.AssetID, amount int64) error
	AssertRecombinable(ctx context.Context, assetID domain.AssetID, amount int64) (transfermodels.FractionSpec, error)
}

// Settler returns surplus payment to a buyer. It is an external value
// transfer: the service invokes it only after its own state is committed and
// its operation lock released, so a re-entrant call cannot observe or corrupt
// a half-applied operation.
type Settler interface {
	Refund(ctx context.Context, to domain.Principal, amountMinor int64) error
}

// Service orchestrates issuance, purchase, transfer, and recombination.
type Service struct {
	// opMu serializes mutating operations. The host environment already
	// serializes requests; the lock is the explicit re-entrancy defense.
	opMu sync.Mutex

	assets   AssetStore
	balances BalanceStore
	gate     EligibilityGate
	prices   PriceReader
	policy   TransferPolicy
	settler  Settler
	txRunner tx.Runner

	publisher events.Publisher
	metrics   *registrymetrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *registrymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithSettler(settler Settler) Option {
	return func(s *Service) { s.settler = settler }
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.txRunner = runner }
}

// New constructs the registry service.
func New(assets AssetStore, balances BalanceStore, gate EligibilityGate, prices PriceReader, policy TransferPolicy, opts ...Option) *Service {
	s := &Service{
		assets:   assets,
		balances: balances,
		gate:     gate,
		prices:   prices,
		policy:   policy,
		txRunner: tx.NoopRunner{},
		tracer:   otel.Tracer("tessera/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// IssueAssetParams carries the issuance request.
type IssueAssetParams struct {
	Issuer          domain.Principal
	DocumentHash    domain.Hash32
	TotalValueMinor int64
	FractionCount   int64
	MinFractionUnit int64
	LockupDuration  time.Duration
	FeedID          domain.FeedID
}

// IssueAsset registers a new asset, snapshots the mint price from a fresh
// oracle read, stores the fraction spec, and credits the full fraction count
// to the issuer. No partial state change on any failure.
func (s *Service) IssueAsset(ctx context.Context, params IssueAssetParams) (domain.AssetID, error) {
	ctx, span := s.tracer.Start(ctx, "registry.IssueAsset")
	defer span.End()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	now := requestcontext.Now(ctx)

	eligible, err := s.gate.CheckEligible(ctx, params.Issuer)
	if err != nil {
		return 0, s.reject("issue_asset", err)
	}
	if !eligible {
		return 0, s.reject("issue_asset",
			dErrors.Newf(dErrors.CodeNotEligible, "issuer %s has no active commitment", params.Issuer))
	}

	snapshot, err := s.prices.ReadFreshPrice(ctx, params.FeedID)
	if err != nil {
		return 0, s.reject("issue_asset", err)
	}

	record, err := models.NewAssetRecord(params.Issuer, params.DocumentHash,
		params.TotalValueMinor, params.FractionCount, params.MinFractionUnit,
		params.FeedID, snapshot.Price, snapshot.Expo, now)
	if err != nil {
		return 0, s.reject("issue_asset", err)
	}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.assets.Create(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store asset record")
		}
		if err := s.policy.CreateSpec(ctx, transfermodels.FractionSpec{
			AssetID:     record.AssetID,
			TotalSupply: record.FractionCount,
			MinUnit:     record.MinFractionUnit,
			LockupEnd:   now.Add(params.LockupDuration),
		}); err != nil {
			return err
		}
		if err := s.balances.Set(ctx, record.AssetID, record.Issuer, record.FractionCount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit issuer")
		}
		return s.emit(ctx, events.Event{
			Type:            events.TypeAssetIssued,
			Timestamp:       now,
			RequestID:       requestcontext.RequestID(ctx),
			AssetID:         record.AssetID,
			Issuer:          record.Issuer,
			DocumentHash:    record.DocumentHash,
			TotalValueMinor: record.TotalValueMinor,
			FractionCount:   record.FractionCount,
			FeedID:          record.MintedAtFeed,
			Price:           record.MintedAtPrice,
			Expo:            record.MintedAtExpo,
		})
	})
	if err != nil {
		return 0, s.reject("issue_asset", err)
	}

	if s.metrics != nil {
		s.metrics.AssetsIssued.Inc()
	}
	s.logger.InfoContext(ctx, "asset issued",
		"asset_id", record.AssetID,
		"issuer", record.Issuer,
		"fraction_count", record.FractionCount,
	)
	return record.AssetID, nil
}

// PurchaseResult reports an executed purchase.
type PurchaseResult struct {
	Cost    int64
	Surplus int64
}

// PurchaseFraction moves amount fractions from the issuer to the buyer at
// the pro-rata share of the asset's registered value. Exactly Cost is kept
// from the payment; the surplus goes back to the buyer.
func (s *Service) PurchaseFraction(ctx context.Context, assetID domain.AssetID, buyer domain.Principal, amount, payment int64) (PurchaseResult, error) {
	ctx, span := s.tracer.Start(ctx, "registry.PurchaseFraction")
	defer span.End()

	s.opMu.Lock()
	result, err := s.purchaseLocked(ctx, assetID, buyer, amount, payment)
	s.opMu.Unlock()
	if err != nil {
		return PurchaseResult{}, err
	}

	// Interaction after effects: state is committed and the lock released
	// before any external value transfer runs.
	if s.settler != nil && result.Surplus > 0 {
		if err := s.settler.Refund(ctx, buyer, result.Surplus); err != nil {
			s.logger.ErrorContext(ctx, "surplus refund failed, reconcile from result",
				"buyer", buyer,
				"surplus", result.Surplus,
				"error", err,
			)
		}
	}
	return result, nil
}

func (s *Service) purchaseLocked(ctx context.Context, assetID domain.AssetID, buyer domain.Principal, amount, payment int64) (PurchaseResult, error) {
	if amount < 1 {
		return PurchaseResult{}, s.reject("purchase_fraction",
			dErrors.New(dErrors.CodeInvalidParameters, "amount must be at least 1").With("amount", amount))
	}

	record, err := s.assets.FindByID(ctx, assetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return PurchaseResult{}, s.reject("purchase_fraction",
			dErrors.Newf(dErrors.CodeAssetNotFound, "asset %d does not exist", assetID))
	}
	if err != nil {
		return PurchaseResult{}, s.reject("purchase_fraction",
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to read asset record"))
	}

	// A self-purchase would debit and credit the same balance row, with the
	// second write clobbering the first and minting fractions.
	if buyer == record.Issuer {
		return PurchaseResult{}, s.reject("purchase_fraction",
			dErrors.New(dErrors.CodeInvalidParameters, "buyer and issuer are the same principal"))
	}

	eligible, err := s.gate.CheckEligible(ctx, buyer)
	if err != nil {
		return PurchaseResult{}, s.reject("purchase_fraction", err)
	}
	if !eligible {
		return PurchaseResult{}, s.reject("purchase_fraction",
			dErrors.Newf(dErrors.CodeNotEligible, "buyer %s has no active commitment", buyer))
	}

	issuerBalance, err := s.balances.Get(ctx, assetID, record.Issuer)
	if err != nil {
		return PurchaseResult{}, s.reject("purchase_fraction",
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to read issuer balance"))
	}
	if issuerBalance < amount {
		return PurchaseResult{}, s.reject("purchase_fraction",
			dErrors.New(dErrors.CodeInsufficientSupply, "issuer holds fewer fractions than requested").
				With("requested", amount).
				With("available", issuerBalance))
	}

	cost := fractionCost(record.TotalValueMinor, amount, record.FractionCount)
	if payment < cost {
		return PurchaseResult{}, s.reject("purchase_fraction",
			dErrors.New(dErrors.CodeInsufficientPayment, "payment does not cover cost").
				With("payment", payment).
				With("cost", cost))
	}

	buyerBalance, err := s.balances.Get(ctx, assetID, buyer)
	if err != nil {
		return PurchaseResult{}, s.reject("purchase_fraction",
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to read buyer balance"))
	}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.balances.Set(ctx, assetID, record.Issuer, issuerBalance-amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit issuer")
		}
		if err := s.balances.Set(ctx, assetID, buyer, buyerBalance+amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit buyer")
		}
		return s.emit(ctx, events.Event{
			Type:      events.TypeFractionPurchased,
			Timestamp: requestcontext.Now(ctx),
			RequestID: requestcontext.RequestID(ctx),
			AssetID:   assetID,
			From:      record.Issuer,
			To:        buyer,
			Amount:    amount,
			Cost:      cost,
		})
	})
	if err != nil {
		return PurchaseResult{}, s.reject("purchase_fraction", err)
	}

	if s.metrics != nil {
		s.metrics.FractionsPurchased.Add(float64(amount))
	}
	return PurchaseResult{Cost: cost, Surplus: payment - cost}, nil
}

// TransferFraction moves fractions between holders. The transfer policy must
// allow the movement and the recipient must hold an active commitment.
func (s *Service) TransferFraction(ctx context.Context, assetID domain.AssetID, from, to domain.Principal, amount int64) error {
	ctx, span := s.tracer.Start(ctx, "registry.TransferFraction")
	defer span.End()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if amount < 1 {
		return s.reject("transfer_fraction",
			dErrors.New(dErrors.CodeInvalidParameters, "amount must be at least 1").With("amount", amount))
	}
	if from == to {
		return s.reject("transfer_fraction",
			dErrors.New(dErrors.CodeInvalidParameters, "sender and recipient are the same principal"))
	}

	if _, err := s.assets.FindByID(ctx, assetID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.reject("transfer_fraction",
				dErrors.Newf(dErrors.CodeAssetNotFound, "asset %d does not exist", assetID))
		}
		return s.reject("transfer_fraction",
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to read asset record"))
	}

	eligible, err := s.gate.CheckEligible(ctx, to)
	if err != nil {
		return s.reject("transfer_fraction", err)
	}
	if !eligible {
		return s.reject("transfer_fraction",
			dErrors.Newf(dErrors.CodeNotEligible, "recipient %s has no active commitment", to))
	}

	// The policy's refusal (below_minimum_unit, lockup_active) propagates
	// as-is; it is the specific rejection reason callers act on.
	if err := s.policy.AssertAllowed(ctx, assetID, amount); err != nil {
		return s.reject("transfer_fraction", err)
	}

	fromBalance, err := s.balances.Get(ctx, assetID, from)
	if err != nil {
		return s.reject("transfer_fraction",
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to read sender balance"))
	}
	if fromBalance < amount {
		return s.reject("transfer_fraction",
			dErrors.New(dErrors.CodeInsufficientSupply, "sender holds fewer fractions than requested").
				With("requested", amount).
				With("available", fromBalance))
	}
	toBalance, err := s.balances.Get(ctx, assetID, to)
	if err != nil {
		return s.reject("transfer_fraction",
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to read recipient balance"))
	}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.balances.Set(ctx, assetID, from, fromBalance-amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit sender")
		}
		if err := s.balances.Set(ctx, assetID, to, toBalance+amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit recipient")
		}
		return s.emit(ctx, events.Event{
			Type:      events.TypeFractionTransferred,
			Timestamp: requestcontext.Now(ctx),
			RequestID: requestcontext.RequestID(ctx),
			AssetID:   assetID,
			From:      from,
			To:        to,
			Amount:    amount,
		})
	})
	if err != nil {
		return s.reject("transfer_fraction", err)
	}

	if s.metrics != nil {
		s.metrics.FractionsTransferred.Add(float64(amount))
	}
	return nil
}

// Recombine burns a holder's complete fraction set and mints one unit of the
// derived whole-asset id. Partial recombination is rejected by the policy.
func (s *Service) Recombine(ctx context.Context, assetID domain.AssetID, holder domain.Principal, amount int64) error {
	ctx, span := s.tracer.Start(ctx, "registry.Recombine")
	defer span.End()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	spec, err := s.policy.AssertRecombinable(ctx, assetID, amount)
	if err != nil {
		return s.reject("recombine", err)
	}

	held, err := s.balances.Get(ctx, assetID, holder)
	if err != nil {
		return s.reject("recombine",
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to read holder balance"))
	}
	if held < spec.TotalSupply {
		return s.reject("recombine",
			dErrors.New(dErrors.CodeInsufficientSupply, "holder does not own the complete fraction set").
				With("held", held).
				With("total_supply", spec.TotalSupply))
	}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.balances.Set(ctx, assetID, holder, held-spec.TotalSupply); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn fractions")
		}
		if err := s.balances.Set(ctx, assetID.Whole(), holder, 1); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint whole asset")
		}
		return s.emit(ctx, events.Event{
			Type:      events.TypeWholeAssetRecombined,
			Timestamp: requestcontext.Now(ctx),
			RequestID: requestcontext.RequestID(ctx),
			AssetID:   assetID,
			From:      holder,
			To:        holder,
			Amount:    spec.TotalSupply,
		})
	})
	if err != nil {
		return s.reject("recombine", err)
	}

	if s.metrics != nil {
		s.metrics.Recombinations.Inc()
	}
	return nil
}

// GetAssetRecord is a pure read. Unknown ids return a zero record with
// exists=false rather than an error; callers check the flag.
func (s *Service) GetAssetRecord(ctx context.Context, assetID domain.AssetID) (models.AssetRecord, bool, error) {
	record, err := s.assets.FindByID(ctx, assetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.AssetRecord{}, false, nil
	}
	if err != nil {
		return models.AssetRecord{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read asset record")
	}
	return *record, true, nil
}

// Balance reads one holder's position.
func (s *Service) Balance(ctx context.Context, assetID domain.AssetID, holder domain.Principal) (int64, error) {
	amount, err := s.balances.Get(ctx, assetID, holder)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	return amount, nil
}

// fractionCost computes floor(totalValueMinor * amount / fractionCount) with
// big.Int intermediates so the product cannot overflow int64.
func fractionCost(totalValueMinor, amount, fractionCount int64) int64 {
	product := new(big.Int).Mul(big.NewInt(totalValueMinor), big.NewInt(amount))
	return product.Div(product, big.NewInt(fractionCount)).Int64()
}

func (s *Service) emit(ctx context.Context, event events.Event) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record domain event")
	}
	return nil
}

// reject counts a failed operation by code and passes the error through.
func (s *Service) reject(operation string, err error) error {
	if s.metrics != nil {
		code := string(dErrors.CodeInternal)
		var de *dErrors.Error
		if errors.As(err, &de) {
			code = string(de.Code)
		}
		s.metrics.OperationsRejected.WithLabelValues(operation, code).Inc()
	}
	return err
}
