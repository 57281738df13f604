package provider

import (
	"context"

	"mailagent/internal/config"
	"mailagent/internal/entity"
	"mailagent/internal/executor"
	"mailagent/internal/ports"
	"mailagent/pkg/apperr"
	"mailagent/pkg/logg"
	"mailagent/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	providerLayer  = "Provider"
	providerTracer = "provider.compose"
)

// Runner is the executor surface one provider drives. Satisfied by
// *executor.Executor.
type Runner interface {
	Run(ctx context.Context, descriptor *entity.ProviderDescriptor, instruction entity.Instruction, page ports.PageDriver, rec ports.StepRecorder) (*executor.Result, error)
}

// Factory builds per-task providers. Every variant - Gmail, Outlook,
// generic - is the same control flow over a different descriptor;
// adding a service means registering a descriptor, never new code.
type Factory struct {
	config   *config.Config
	logger   *zap.Logger
	runner   Runner
	sessions ports.BrowserManager
}

type FactoryParams struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Runner   Runner
	Sessions ports.BrowserManager
}

func NewFactory(params FactoryParams) *Factory {
	return &Factory{
		config:   params.Config,
		logger:   params.Logger,
		runner:   params.Runner,
		sessions: params.Sessions,
	}
}

func (f *Factory) Provider(descriptor *entity.ProviderDescriptor, rec ports.StepRecorder) ports.Provider {
	return &Provider{
		config:     f.config,
		logger:     f.logger.With(zap.String(logg.Layer, providerLayer), zap.String(logg.Provider, descriptor.ID)),
		tracer:     otel.Tracer(providerTracer),
		runner:     f.runner,
		sessions:   f.sessions,
		descriptor: descriptor,
		rec:        rec,
	}
}

// Provider executes composeEmail for one service against one isolated
// session. The outcome is always terminal: dispatch is suppressed by
// policy, so detection failures degrade to a mock completion rather
// than an unhandled error.
type Provider struct {
	config     *config.Config
	logger     *zap.Logger
	tracer     trace.Tracer
	runner     Runner
	sessions   ports.BrowserManager
	descriptor *entity.ProviderDescriptor
	rec        ports.StepRecorder
}

func (p *Provider) ID() string {
	return p.descriptor.ID
}

func (p *Provider) ComposeEmail(ctx context.Context, instruction entity.Instruction) entity.ExecutionOutcome {
	const op = "ComposeEmail"
	logger := p.logger.With(zap.String(logg.Operation, op))

	ctx, span := tracing.StartSpan(ctx, p.tracer, logger, op,
		attribute.String("provider", p.descriptor.ID))
	defer span.End(nil)

	if !p.descriptor.Supports(entity.CapabilityComposeEmail) {
		return failure(apperr.CodeNotSupported, "descriptor does not support compose_email", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.ExecutorConfig.TaskTimeout)
	defer cancel()

	p.rec.Step("Starting %s automation...", p.descriptor.DisplayName)

	session, err := p.sessions.NewSession(ctx)
	if err != nil {
		logger.Error("Session creation failed", zap.Error(err))

		return failure(apperr.CodeBrowserNotReady, err.Error(), nil)
	}

	defer func() {
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("Session close failed", zap.Error(cerr))
		}
	}()

	result, err := p.runner.Run(ctx, p.descriptor, instruction, session, p.rec)

	var attempts []entity.LocateAttempt
	if result != nil {
		attempts = result.Attempts
	}

	if err == nil {
		p.rec.Step("%s email composition completed successfully!", p.descriptor.DisplayName)

		return entity.ExecutionOutcome{
			Status:   entity.OutcomeCompletedReal,
			Attempts: attempts,
		}
	}

	code := apperr.CodeOf(err)
	logger.Warn("Execution did not complete", zap.String("code", code), zap.Error(err))

	// Field detection and verification failures degrade to a mock
	// completion: no real send happens either way, and the task must
	// end in a user-visible terminal result.
	if code == apperr.CodeFieldNotFound || code == apperr.CodeVerification {
		p.mockCompose(instruction)

		return entity.ExecutionOutcome{
			Status:      entity.OutcomeCompletedMock,
			FailureCode: code,
			Error:       err.Error(),
			Attempts:    attempts,
		}
	}

	return failure(code, err.Error(), attempts)
}

// mockCompose reports the composition the task would have produced.
func (p *Provider) mockCompose(instruction entity.Instruction) {
	p.rec.Step("=== %s DEMO MODE ===", p.descriptor.DisplayName)
	p.rec.Step("To: %s", instruction.Recipient)
	p.rec.Step("Subject: %s", instruction.Subject)
	p.rec.Step("Body: %s", truncate(instruction.Body, 100))
	p.rec.Step("Email composition simulated successfully!")
}

func failure(code, msg string, attempts []entity.LocateAttempt) entity.ExecutionOutcome {
	return entity.ExecutionOutcome{
		Status:      entity.OutcomeFailed,
		FailureCode: code,
		Error:       msg,
		Attempts:    attempts,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
