package graphrank

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soundprediction/graphrank/pkg/cache"
	"github.com/soundprediction/graphrank/pkg/diversify"
	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/embedder"
	"github.com/soundprediction/graphrank/pkg/fusion"
	"github.com/soundprediction/graphrank/pkg/limiter"
	"github.com/soundprediction/graphrank/pkg/multihop"
	"github.com/soundprediction/graphrank/pkg/propagation"
	"github.com/soundprediction/graphrank/pkg/resolver"
	"github.com/soundprediction/graphrank/pkg/weighting"
)

var (
	// ErrMissingGroupID is returned when a request omits its tenant.
	ErrMissingGroupID = driver.ErrMissingGroupID
	// ErrAllSourcesFailed is returned when every signal source of a cycle
	// failed. Individual source failures only degrade the result.
	ErrAllSourcesFailed = errors.New("all signal sources failed")
	// ErrEmptyQuery is returned when a request carries no query text.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// Options holds the engine's tunables. Zero values fall back to the
// package defaults.
type Options struct {
	// Profile is the default tier weight profile; ProfileAuto infers it
	// per request.
	Profile weighting.Profile
	// Variant forces a propagation variant for every request. Empty lets
	// the profile decide: fact lookups stay bounded-hop, thematic and
	// multi-hop queries run power iteration.
	Variant propagation.Variant
	// Damping overrides the profile's damping factor when non-zero.
	Damping float64

	Resolver    resolver.Config
	Weighting   weighting.Config
	Propagation propagation.Config
	Fusion      fusion.Config
	Diversify   diversify.Config
	MultiHop    multihop.Config

	// EvidenceLimit is the per-source fetch size feeding fusion.
	EvidenceLimit int
	// Oversample widens vector queries before post-filtering.
	Oversample int
	// CycleTimeout bounds one resolve->propagate->fuse cycle.
	CycleTimeout time.Duration
	// TenantConcurrency bounds concurrent store/embedding calls per group.
	TenantConcurrency int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Profile:           weighting.ProfileAuto,
		Resolver:          resolver.DefaultConfig(),
		Weighting:         weighting.DefaultConfig(),
		Propagation:       propagation.DefaultConfig(),
		Fusion:            fusion.DefaultConfig(),
		Diversify:         diversify.DefaultConfig(),
		MultiHop:          multihop.DefaultConfig(),
		EvidenceLimit:     50,
		Oversample:        2,
		CycleTimeout:      30 * time.Second,
		TenantConcurrency: 8,
	}
}

// Engine is the retrieval ranking engine. It owns no data: the graph,
// vector, and full-text signals all live behind the injected GraphDriver,
// and the engine never writes to it.
type Engine struct {
	driver      driver.GraphDriver
	embedder    embedder.Client
	cache       *cache.TenantCache
	limiter     *limiter.TenantLimiter
	resolver    *resolver.Resolver
	weighter    *weighting.Weighter
	fuser       *fusion.Fuser
	diversifier *diversify.Diversifier
	options     Options
	logger      *slog.Logger
}

// NewEngine wires an engine. The embedder may be nil (embedding-based
// resolution and the vector source are then skipped); the cache may be nil.
func NewEngine(graphDriver driver.GraphDriver, embedderClient embedder.Client, tenantCache *cache.TenantCache, options Options, logger *slog.Logger) (*Engine, error) {
	if graphDriver == nil {
		return nil, errors.New("graph driver is required")
	}
	if options.EvidenceLimit <= 0 {
		options = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	tenantLimiter := limiter.New(options.TenantConcurrency)

	return &Engine{
		driver:      graphDriver,
		embedder:    embedderClient,
		cache:       tenantCache,
		limiter:     tenantLimiter,
		resolver:    resolver.New(graphDriver, embedderClient, tenantLimiter, options.Resolver, logger),
		weighter:    weighting.New(graphDriver, tenantCache, options.Weighting, logger),
		fuser:       fusion.New(options.Fusion),
		diversifier: diversify.New(options.Diversify),
		options:     options,
		logger:      logger,
	}, nil
}

// Close releases the driver, embedder, and cache.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if err := e.driver.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// variantFor maps a tier profile to its propagation variant unless the
// caller forced one. Fact lookups stay near the seeds; broader profiles
// let relevance travel.
func (e *Engine) variantFor(profile weighting.Profile) propagation.Variant {
	if e.options.Variant != "" {
		return e.options.Variant
	}
	switch profile {
	case weighting.ProfileThematicSurvey, weighting.ProfileMultiHop:
		return propagation.VariantPowerIteration
	default:
		return propagation.VariantBoundedHop
	}
}

// dampingFor returns the damping factor for a profile, honoring the
// caller's override.
func (e *Engine) dampingFor(profile weighting.Profile) float64 {
	if e.options.Damping > 0 && e.options.Damping < 1 {
		return e.options.Damping
	}
	return profile.Damping()
}
