package usecase

import (
	"context"
	"strings"
	"time"

	"mailagent/internal/config"
	"mailagent/internal/entity"
	"mailagent/internal/ports"
	"mailagent/internal/steplog"
	"mailagent/pkg/apperr"
	"mailagent/pkg/logg"
	"mailagent/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	agentServiceName = "AgentService"
	agentTracer      = "usecase.agent"

	// ChoiceAll runs the instruction against every registered
	// provider, each in its own isolated session.
	ChoiceAll = "both"
)

// AgentService parses one instruction and fans it out across the
// selected providers. Provider tasks run concurrently; the registry
// and descriptors are immutable, so no coordination is needed beyond
// collecting results.
type AgentService struct {
	config   *config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
	registry ports.Registry
	parser   ports.InstructionParser
	factory  ports.ProviderFactory
}

type Params struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Registry ports.Registry
	Parser   ports.InstructionParser
	Factory  ports.ProviderFactory
}

func NewAgentService(params Params) *AgentService {
	return &AgentService{
		config:   params.Config,
		logger:   params.Logger.With(zap.String(logg.Layer, agentServiceName)),
		tracer:   otel.Tracer(agentTracer),
		registry: params.Registry,
		parser:   params.Parser,
		factory:  params.Factory,
	}
}

var _ ports.AgentService = (*AgentService)(nil)

func (s *AgentService) Execute(ctx context.Context, instruction string, providerChoice string) (report *entity.TaskReport, err error) {
	const op = "Execute"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, span := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("provider_choice", providerChoice))
	defer func() {
		span.End(err)
	}()

	parsed, err := s.parser.Parse(instruction)
	if err != nil {
		return nil, err
	}

	descriptors, err := s.selectDescriptors(providerChoice)
	if err != nil {
		return nil, err
	}

	report = &entity.TaskReport{
		ID:          uuid.New(),
		Instruction: parsed,
		StartedAt:   time.Now(),
		Results:     make([]entity.ProviderResult, len(descriptors)),
	}

	logger = logger.With(zap.String(logg.TaskID, report.ID.String()))
	logger.Info("Executing instruction",
		zap.String("recipient", parsed.Recipient),
		zap.Int("providers", len(descriptors)))
	span.AddEvent("task created", attribute.Int("providers", len(descriptors)))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, descriptor := range descriptors {
		group.Go(func() error {
			rec := steplog.New(s.logger, descriptor.ID)
			prov := s.factory.Provider(descriptor, rec)

			started := time.Now()
			outcome := prov.ComposeEmail(groupCtx, parsed)

			report.Results[i] = entity.ProviderResult{
				Provider: descriptor.ID,
				Outcome:  outcome,
				Steps:    rec.Steps(),
				Elapsed:  time.Since(started),
			}

			return nil
		})
	}

	// ComposeEmail is total: every failure is folded into its outcome,
	// so the group never returns an error.
	_ = group.Wait()

	report.FinishedAt = time.Now()

	for _, res := range report.Results {
		logger.Info("Provider finished",
			zap.String(logg.Provider, res.Provider),
			zap.String("status", string(res.Outcome.Status)),
			zap.Duration("elapsed", res.Elapsed))
	}

	return report, nil
}

func (s *AgentService) selectDescriptors(choice string) ([]*entity.ProviderDescriptor, error) {
	const op = "selectDescriptors"

	choice = strings.TrimSpace(strings.ToLower(choice))

	if choice == "" || choice == ChoiceAll {
		return s.registry.Descriptors(), nil
	}

	descriptor, err := s.registry.Resolve(choice)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeNotSupported, err, map[string]any{
			apperr.MetaProvider: choice,
		})
	}

	return []*entity.ProviderDescriptor{descriptor}, nil
}
