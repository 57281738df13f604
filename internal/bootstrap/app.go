package bootstrap

import (
	"time"

	"mailagent/internal/browser"
	"mailagent/internal/config"
	"mailagent/internal/console"
	"mailagent/internal/executor"
	"mailagent/internal/httpapi"
	"mailagent/internal/locator"
	"mailagent/internal/parser"
	"mailagent/internal/ports"
	"mailagent/internal/provider"
	"mailagent/internal/registry"
	"mailagent/internal/usecase"

	"go.uber.org/fx"
)

type Mode string

const (
	// ModeConsole runs the interactive instruction loop.
	ModeConsole Mode = "console"
	// ModeOnce executes a single instruction and exits.
	ModeOnce Mode = "once"
	// ModeServe exposes the REST API.
	ModeServe Mode = "serve"
)

type Options struct {
	Mode        Mode
	Instruction string
	Provider    string
}

func NewApp(opts Options) *fx.App {
	base := fx.Options(
		fx.Supply(opts),

		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			fx.Annotate(registry.NewRegistry, fx.As(new(ports.Registry))),
			fx.Annotate(parser.NewParser, fx.As(new(ports.InstructionParser))),
			fx.Annotate(browser.NewManager, fx.As(new(ports.BrowserManager))),
			fx.Annotate(locator.NewLocator, fx.As(new(ports.ElementLocator))),
			fx.Annotate(executor.NewExecutor, fx.As(new(provider.Runner))),
			fx.Annotate(provider.NewFactory, fx.As(new(ports.ProviderFactory))),
			fx.Annotate(usecase.NewAgentService, fx.As(new(ports.AgentService))),

			console.NewInterface,
			httpapi.NewServer,
		),

		fx.StartTimeout(30*time.Second),
	)

	switch opts.Mode {
	case ModeServe:
		return fx.New(base, fx.Invoke(runServer))
	case ModeOnce:
		return fx.New(base, fx.Invoke(runOnce))
	default:
		return fx.New(base, fx.Invoke(runConsole))
	}
}
