// Package service implements the price oracle cache: it ingests signed price
// attestations, keeps the latest snapshot per feed, and enforces staleness on
// the read path value-moving operations use.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	oraclemetrics "tessera/internal/oracle/metrics"
	"tessera/internal/oracle/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/events"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/requestcontext"
)

// DefaultStalenessThreshold bounds the age of a price a value-moving
// operation may rely on.
const DefaultStalenessThreshold = 600 * time.Second

// SnapshotStore persists the latest snapshot per feed.
type SnapshotStore interface {
	Get(ctx context.Context, feedID domain.FeedID) (models.PriceSnapshot, error)
	Put(ctx context.Context, snapshot models.PriceSnapshot) error
}

// AttestationVerifier accepts and decodes a signed attestation or rejects it.
// Authenticity enforcement lives entirely behind this interface.
type AttestationVerifier interface {
	Verify(feedID domain.FeedID, blob []byte) (models.PriceUpdate, error)
}

// FeeCalculator prices the acceptance of one attestation. Computed by an
// external pricing primitive; the cache only compares against the fee paid.
type FeeCalculator interface {
	RequiredFee(blob []byte) int64
}

// FlatFee charges the same fee for every update.
type FlatFee int64

func (f FlatFee) RequiredFee([]byte) int64 { return int64(f) }

// Service is the price oracle cache.
type Service struct {
	store    SnapshotStore
	verifier AttestationVerifier
	fee      FeeCalculator
	admin    domain.AdminCapability

	mu        sync.RWMutex
	supported map[domain.FeedID]bool
	staleness time.Duration

	publisher events.Publisher
	logger    *slog.Logger
	metrics   *oraclemetrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *oraclemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithFeeCalculator(fee FeeCalculator) Option {
	return func(s *Service) { s.fee = fee }
}

func WithStalenessThreshold(d time.Duration) Option {
	return func(s *Service) { s.staleness = d }
}

// New constructs the cache. supportedFeeds seeds the feed allowlist; the
// admin capability gates later changes to it and to the staleness threshold.
func New(store SnapshotStore, verifier AttestationVerifier, admin domain.AdminCapability, supportedFeeds []domain.FeedID, opts ...Option) *Service {
	s := &Service{
		store:     store,
		verifier:  verifier,
		fee:       FlatFee(1),
		admin:     admin,
		supported: make(map[domain.FeedID]bool, len(supportedFeeds)),
		staleness: DefaultStalenessThreshold,
	}
	for _, feed := range supportedFeeds {
		s.supported[feed] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// IngestResult reports an accepted update: the fresh snapshot and the surplus
// fee returned to the caller.
type IngestResult struct {
	Snapshot models.PriceSnapshot
	Refund   int64
}

// IngestUpdate verifies an attestation and overwrites the cached snapshot for
// its feed. Nothing is written on any failure.
func (s *Service) IngestUpdate(ctx context.Context, feedID domain.FeedID, attestation []byte, feePaid int64) (IngestResult, error) {
	if !s.isSupported(feedID) {
		s.reject("unsupported_feed")
		return IngestResult{}, dErrors.Newf(dErrors.CodeUnsupportedFeed, "feed %q is not on the supported list", feedID).
			With("feed_id", feedID.String())
	}

	required := s.fee.RequiredFee(attestation)
	if feePaid < required {
		s.reject("insufficient_fee")
		return IngestResult{}, dErrors.New(dErrors.CodeInsufficientFee, "update fee not covered").
			With("fee_paid", feePaid).
			With("required_fee", required)
	}

	update, err := s.verifier.Verify(feedID, attestation)
	if err != nil {
		s.reject("verification_failed")
		return IngestResult{}, dErrors.Wrap(err, dErrors.CodeInvalidParameters, "attestation rejected")
	}

	snapshot := models.PriceSnapshot{
		FeedID:      feedID,
		Price:       update.Price,
		Expo:        update.Expo,
		Conf:        update.Conf,
		PublishedAt: update.PublishedAt,
		Valid:       true,
	}
	if err := s.store.Put(ctx, snapshot); err != nil {
		return IngestResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store snapshot")
	}

	if s.metrics != nil {
		s.metrics.UpdatesAccepted.WithLabelValues(feedID.String()).Inc()
	}
	s.emitPriceUpdated(ctx, snapshot)

	return IngestResult{Snapshot: snapshot, Refund: feePaid - required}, nil
}

// ReadFreshPrice returns the cached price for a feed iff it exists and is
// within the staleness threshold. This is the only read path issuance uses.
func (s *Service) ReadFreshPrice(ctx context.Context, feedID domain.FeedID) (models.PriceSnapshot, error) {
	snapshot, err := s.store.Get(ctx, feedID)
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && !snapshot.Valid) {
		return models.PriceSnapshot{}, dErrors.Newf(dErrors.CodePriceUnavailable, "no price published for feed %q", feedID).
			With("feed_id", feedID.String())
	}
	if err != nil {
		return models.PriceSnapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read snapshot")
	}

	now := requestcontext.Now(ctx)
	threshold := s.StalenessThreshold()
	if age := snapshot.Age(now); age > threshold {
		if s.metrics != nil {
			s.metrics.StaleReads.WithLabelValues(feedID.String()).Inc()
		}
		return models.PriceSnapshot{}, dErrors.Newf(dErrors.CodePriceStale, "price for feed %q is stale", feedID).
			With("age_seconds", int64(age/time.Second)).
			With("threshold_seconds", int64(threshold/time.Second))
	}
	return snapshot, nil
}

// ReadCachedUnsafe skips the staleness check. Diagnostics and yield previews
// only; never used by a value-moving operation.
func (s *Service) ReadCachedUnsafe(ctx context.Context, feedID domain.FeedID) (models.PriceSnapshot, error) {
	snapshot, err := s.store.Get(ctx, feedID)
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && !snapshot.Valid) {
		return models.PriceSnapshot{}, dErrors.Newf(dErrors.CodePriceUnavailable, "no price published for feed %q", feedID).
			With("feed_id", feedID.String())
	}
	if err != nil {
		return models.PriceSnapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read snapshot")
	}
	return snapshot, nil
}

// StalenessThreshold returns the current threshold.
func (s *Service) StalenessThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staleness
}

// SetStalenessThreshold changes the threshold for all subsequent reads.
// Takes effect immediately; no grandfathering for in-flight callers.
func (s *Service) SetStalenessThreshold(cap domain.AdminCapability, d time.Duration) error {
	if !s.admin.Grants(cap) {
		return dErrors.New(dErrors.CodeForbidden, "staleness threshold requires the admin capability")
	}
	if d <= 0 {
		return dErrors.New(dErrors.CodeInvalidParameters, "staleness threshold must be positive").
			With("threshold", d.String())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleness = d
	return nil
}

// AddSupportedFeed registers a feed on the supported list.
func (s *Service) AddSupportedFeed(cap domain.AdminCapability, feedID domain.FeedID) error {
	if !s.admin.Grants(cap) {
		return dErrors.New(dErrors.CodeForbidden, "feed management requires the admin capability")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supported[feedID] = true
	return nil
}

// RemoveSupportedFeed removes a feed. Subsequent updates for it are rejected;
// the cached snapshot stays readable until it goes stale.
func (s *Service) RemoveSupportedFeed(cap domain.AdminCapability, feedID domain.FeedID) error {
	if !s.admin.Grants(cap) {
		return dErrors.New(dErrors.CodeForbidden, "feed management requires the admin capability")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.supported, feedID)
	return nil
}

func (s *Service) isSupported(feedID domain.FeedID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supported[feedID]
}

func (s *Service) reject(reason string) {
	if s.metrics != nil {
		s.metrics.UpdatesRejected.WithLabelValues(reason).Inc()
	}
}

func (s *Service) emitPriceUpdated(ctx context.Context, snapshot models.PriceSnapshot) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Emit(ctx, events.Event{
		Type:        events.TypePriceUpdated,
		Timestamp:   requestcontext.Now(ctx),
		RequestID:   requestcontext.RequestID(ctx),
		FeedID:      snapshot.FeedID,
		Price:       snapshot.Price,
		Expo:        snapshot.Expo,
		Confidence:  snapshot.Conf,
		PublishedAt: snapshot.PublishedAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit price_updated event",
			"feed_id", snapshot.FeedID,
			"error", err,
		)
	}
}
