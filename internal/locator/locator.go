package locator

import (
	"context"
	"time"

	"mailagent/internal/config"
	"mailagent/internal/entity"
	"mailagent/internal/ports"
	"mailagent/pkg/logg"
	"mailagent/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	locatorName   = "ElementLocator"
	locatorTracer = "locator.cascade"
)

// Locator discovers a field's concrete element through an ordered
// cascade of detection strategies, falling back as confidence drops.
// The strategy order is fixed and deterministic; only the scoring
// thresholds are tunable.
type Locator struct {
	config *config.Config
	logger *zap.Logger
	tracer trace.Tracer
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewLocator(params Params) *Locator {
	return &Locator{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, locatorName)),
		tracer: otel.Tracer(locatorTracer),
	}
}

type strategyFn func(ctx context.Context, role entity.FieldRole, descriptor *entity.ProviderDescriptor, page ports.PageDriver) (*entity.Element, string)

// Locate runs the cascade for one role, stopping at the first strategy
// that produces an element. Every strategy tried is recorded as a
// LocateAttempt, successful or not.
func (l *Locator) Locate(ctx context.Context, role entity.FieldRole, descriptor *entity.ProviderDescriptor, page ports.PageDriver) entity.LocateResult {
	const op = "Locate"
	logger := l.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.Role, string(role)),
		zap.String(logg.Provider, descriptor.ID),
	)

	ctx, span := tracing.StartSpan(ctx, l.tracer, logger, op,
		attribute.String("role", string(role)),
		attribute.String("provider", descriptor.ID))
	defer span.End(nil)

	strategies := []struct {
		name entity.Strategy
		fn   strategyFn
	}{
		{entity.StrategySelector, l.bySelectorTable},
		{entity.StrategySemantic, l.bySemanticAttributes},
		{entity.StrategyHeuristic, l.byHeuristicScan},
		{entity.StrategyPositional, l.byPosition},
	}

	result := entity.LocateResult{}

	for _, strategy := range strategies {
		span.AddEvent("trying strategy", attribute.String("strategy", string(strategy.name)))

		started := time.Now()
		element, candidate := strategy.fn(ctx, role, descriptor, page)

		result.Attempts = append(result.Attempts, entity.LocateAttempt{
			Role:      role,
			Strategy:  strategy.name,
			Candidate: candidate,
			Succeeded: element != nil,
			Elapsed:   time.Since(started),
		})

		if element != nil {
			logger.Info("Element located",
				zap.String(logg.Strategy, string(strategy.name)),
				zap.String(logg.Selector, element.Selector))

			result.Element = element
			result.Strategy = strategy.name

			return result
		}

		logger.Debug("Strategy found nothing", zap.String(logg.Strategy, string(strategy.name)))
	}

	logger.Warn("All strategies exhausted")

	return result
}

// bySelectorTable tries the descriptor's selector expressions for the
// role in table order. First visible, interactable match wins.
func (l *Locator) bySelectorTable(ctx context.Context, role entity.FieldRole, descriptor *entity.ProviderDescriptor, page ports.PageDriver) (*entity.Element, string) {
	for _, selector := range descriptor.Selectors[role] {
		element, err := page.FindVisible(ctx, selector)
		if err != nil {
			l.logger.Debug("Selector probe failed", zap.String(logg.Selector, selector), zap.Error(err))

			continue
		}

		if element != nil {
			return element, selector
		}
	}

	return nil, ""
}

// bySemanticAttributes scans conventionally interactive elements and
// scores accessible names, placeholders, labels and role/type
// attributes against the role's keyword set.
func (l *Locator) bySemanticAttributes(ctx context.Context, role entity.FieldRole, _ *entity.ProviderDescriptor, page ports.PageDriver) (*entity.Element, string) {
	candidates, err := page.QueryCandidates(ctx, ports.ScanInteractive)
	if err != nil {
		l.logger.Debug("Interactive scan failed", zap.Error(err))

		return nil, ""
	}

	cfg := l.config.LocatorConfig

	best := pickBest(candidates, cfg.SemanticThreshold, func(el *entity.Element) int {
		return semanticScore(cfg, role, el)
	})
	if best == nil {
		return nil, ""
	}

	return best, best.Selector
}

// byHeuristicScan broadens the sweep to every rendered element and
// mixes text similarity with element geometry.
func (l *Locator) byHeuristicScan(ctx context.Context, role entity.FieldRole, _ *entity.ProviderDescriptor, page ports.PageDriver) (*entity.Element, string) {
	candidates, err := page.QueryCandidates(ctx, ports.ScanAll)
	if err != nil {
		l.logger.Debug("Full scan failed", zap.Error(err))

		return nil, ""
	}

	cfg := l.config.LocatorConfig

	best := pickBest(candidates, cfg.HeuristicThreshold, func(el *entity.Element) int {
		return heuristicScore(cfg, role, el)
	})
	if best == nil {
		return nil, ""
	}

	return best, best.Selector
}

// byPosition is the last resort: pick purely by expected layout for
// the role, with no text signal at all.
func (l *Locator) byPosition(ctx context.Context, role entity.FieldRole, _ *entity.ProviderDescriptor, page ports.PageDriver) (*entity.Element, string) {
	candidates, err := page.QueryCandidates(ctx, ports.ScanAll)
	if err != nil {
		l.logger.Debug("Full scan failed", zap.Error(err))

		return nil, ""
	}

	best := positionalPick(role, candidates)
	if best == nil {
		return nil, ""
	}

	return best, best.Selector
}
