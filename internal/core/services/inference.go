package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/classify"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driving"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/embed"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/preprocess"
)

// Inference defaults; all overridable through InferenceOptions.
const (
	DefaultFallbackThreshold = 0.5
	DefaultCacheTTL          = 10 * time.Minute
)

// InferenceOptions tunes the inference service. The cache and fallback
// collaborators are optional; nil disables them.
type InferenceOptions struct {
	Cache             driven.ResultCache
	Fallback          driven.ReferenceLookup
	FallbackThreshold float64
	CacheTTL          time.Duration
	RatePerSecond     float64
}

// loadedBundle pairs one published bundle with its runtime components.
// Immutable once built; swapped in atomically.
type loadedBundle struct {
	bundle    *domain.ModelBundle
	pre       *preprocess.Preprocessor
	embedder  *embed.Embedder
	predictor *classify.Predictor
}

// InferenceService is the serving path: preprocessing, embedding and
// calibrated classification against the currently loaded bundle, with
// result caching and confidence-gated fallback routing. Bundle swaps
// are atomic; in-flight requests keep the bundle they started with.
type InferenceService struct {
	current atomic.Pointer[loadedBundle]

	cache             driven.ResultCache
	fallback          driven.ReferenceLookup
	fallbackThreshold float64
	cacheTTL          time.Duration
	limiter           *rate.Limiter
}

var _ driving.ClassificationService = (*InferenceService)(nil)

// NewInferenceService creates the service with no bundle loaded.
func NewInferenceService(opts InferenceOptions) *InferenceService {
	if opts.FallbackThreshold <= 0 {
		opts.FallbackThreshold = DefaultFallbackThreshold
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &InferenceService{
		cache:             opts.Cache,
		fallback:          opts.Fallback,
		fallbackThreshold: opts.FallbackThreshold,
		cacheTTL:          opts.CacheTTL,
		limiter:           rate.NewLimiter(limit, 1),
	}
}

// LoadBundle validates a published bundle and swaps it in atomically.
// The embedder rebuilt from the bundle's parameters must reproduce the
// version the bundle was trained with.
func (s *InferenceService) LoadBundle(bundle *domain.ModelBundle) error {
	pre, err := preprocess.New(bundle.Preprocess)
	if err != nil {
		return err
	}
	embedder := embed.New(bundle.Embed)
	if embedder.Version() != bundle.EmbedderVersion {
		return fmt.Errorf("%w: bundle %s was trained with %q, runtime produces %q",
			domain.ErrEmbedderVersionMismatch, bundle.Version, bundle.EmbedderVersion, embedder.Version())
	}
	predictor, err := classify.NewPredictor(bundle.Classifier, bundle.Calibration, bundle.Labels)
	if err != nil {
		return err
	}

	s.current.Store(&loadedBundle{
		bundle:    bundle,
		pre:       pre,
		embedder:  embedder,
		predictor: predictor,
	})
	logger.Info("inference: loaded bundle %s", bundle.Version)
	return nil
}

// BundleVersion returns the loaded bundle's version tag, or empty.
func (s *InferenceService) BundleVersion() string {
	if lb := s.current.Load(); lb != nil {
		return lb.bundle.Version
	}
	return ""
}

// Classify runs each read through the serving path. Per-read failures
// are isolated; the batch fails as a whole only when no bundle is
// loaded or the request is over capacity.
func (s *InferenceService) Classify(ctx context.Context, reads []domain.Read) ([]driving.ClassifyResult, error) {
	lb := s.current.Load()
	if lb == nil {
		return nil, domain.ErrNoBundle
	}

	if err := s.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: waiting for rate limiter", domain.ErrTimeout)
		}
		return nil, err
	}

	results := make([]driving.ClassifyResult, 0, len(reads))
	for _, read := range reads {
		if err := ctx.Err(); err != nil {
			// Deadline hit mid-batch: remaining reads time out, finished
			// results are kept.
			for _, r := range reads[len(results):] {
				results = append(results, driving.ClassifyResult{
					ReadID: r.ID,
					Err:    fmt.Errorf("%w: %v", domain.ErrTimeout, err),
				})
			}
			break
		}

		prediction, err := s.classifyOne(ctx, lb, read)
		results = append(results, driving.ClassifyResult{
			ReadID:     read.ID,
			Prediction: prediction,
			Err:        err,
		})
	}
	return results, nil
}

// classifyOne serves one read: cache first, then the model, then the
// fallback gate.
func (s *InferenceService) classifyOne(ctx context.Context, lb *loadedBundle, read domain.Read) (*domain.Prediction, error) {
	seq, err := lb.pre.Canonicalize(read)
	if err != nil {
		return nil, err
	}

	key := cacheKey(seq.Canonical, lb.bundle.Version)
	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn("inference: cache get: %v", err)
		case hit:
			p := *cached
			p.ReadID = read.ID
			p.CacheHit = true
			return &p, nil
		}
	}

	vectors, err := lb.embedder.EmbedBatch(ctx, []domain.TokenSequence{seq})
	if err != nil {
		return nil, err
	}
	assignments, err := lb.predictor.Predict(vectors[0].Values)
	if err != nil {
		return nil, err
	}

	prediction := &domain.Prediction{
		ReadID:        read.ID,
		Assignments:   assignments,
		BundleVersion: lb.bundle.Version,
	}

	if s.fallback != nil && prediction.Top().Confidence < s.fallbackThreshold {
		if routed, ok := s.route(ctx, seq.Canonical, prediction); ok {
			prediction = routed
		}
	}

	if s.cache != nil {
		stored := *prediction
		stored.CacheHit = false
		if err := s.cache.Set(ctx, key, stored, s.cacheTTL); err != nil {
			logger.Warn("inference: cache set: %v", err)
		}
	}
	return prediction, nil
}

// route delegates a low-confidence prediction to the reference lookup.
// The model's own assignments are preserved after the fallback's so
// callers can compare the two. A failed lookup leaves the local
// prediction in place.
func (s *InferenceService) route(ctx context.Context, canonical string, local *domain.Prediction) (*domain.Prediction, bool) {
	assignment, err := s.fallback.Lookup(ctx, canonical)
	if err != nil {
		logger.Warn("inference: fallback lookup for %s: %v", local.ReadID, err)
		return nil, false
	}

	routed := *local
	routed.FallbackRouted = true
	routed.Assignments = append([]domain.Assignment{*assignment}, local.Assignments...)
	logger.Debug("inference: read %s routed to fallback (local confidence %.3f)",
		local.ReadID, local.Top().Confidence)
	return &routed, true
}

// cacheKey hashes the canonical sequence together with the bundle
// version, so a bundle swap can never serve stale predictions.
func cacheKey(canonical, version string) string {
	h := sha256.New()
	h.Write([]byte(canonical))
	h.Write([]byte{0})
	h.Write([]byte(version))
	return hex.EncodeToString(h.Sum(nil))
}
