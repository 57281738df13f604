package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"mailagent/internal/config"
	"mailagent/internal/entity"
	"mailagent/internal/ports"
	"mailagent/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Interface is the interactive console loop: read an instruction, run
// it across the selected providers, print the report.
type Interface struct {
	config   *config.Config
	logger   *zap.Logger
	agent    ports.AgentService
	ctx      context.Context
	cancel   context.CancelFunc
	provider string
	stopping bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Agent  ports.AgentService
}

func NewInterface(params Params) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	return &Interface{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, "Console")),
		agent:  params.Agent,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (i *Interface) Start() error {
	i.printBanner()
	i.printHelp()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		if i.stopping {
			break
		}

		fmt.Print("\n> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if err := i.handleCommand(input); err != nil {
			if err.Error() == "exit" {
				break
			}

			i.logger.Error("Command error", zap.Error(err))
			fmt.Printf("Error: %v\n", err)
		}
	}

	return nil
}

func (i *Interface) Stop() error {
	if i.stopping {
		return nil
	}

	i.stopping = true
	i.logger.Info("Stopping console interface...")
	i.cancel()

	return nil
}

// ExecuteOnce runs a single instruction non-interactively and prints
// the report, for one-shot CLI invocations.
func (i *Interface) ExecuteOnce(instruction, provider string) error {
	i.provider = provider

	return i.executeTask(instruction)
}

func (i *Interface) handleCommand(input string) error {
	switch {
	case input == "help" || input == "h":
		i.printHelp()

		return nil
	case input == "exit" || input == "quit" || input == "q":
		fmt.Println("Shutting down...")

		return fmt.Errorf("exit")
	case strings.HasPrefix(input, "provider "):
		i.provider = strings.TrimSpace(strings.TrimPrefix(input, "provider "))
		fmt.Printf("Provider set to: %s\n", i.provider)

		return nil
	default:
		return i.executeTask(input)
	}
}

func (i *Interface) executeTask(instruction string) error {
	fmt.Printf("\nStarting task: %s\n", instruction)
	fmt.Println(strings.Repeat("-", 50))

	report, err := i.agent.Execute(i.ctx, instruction, i.provider)
	if err != nil {
		fmt.Printf("\nTask failed: %v\n", err)

		return nil
	}

	fmt.Println("\n" + strings.Repeat("-", 50))
	fmt.Printf("Task %s\n", report.ID)
	fmt.Printf("To: %s | Subject: %s\n", report.Instruction.Recipient, report.Instruction.Subject)

	for _, res := range report.Results {
		fmt.Printf("\n[%s] %s (%.1fs)\n", res.Provider, statusLabel(res.Outcome), res.Elapsed.Seconds())

		for _, step := range res.Steps {
			fmt.Printf("  [STEP] %s\n", step)
		}
	}

	return nil
}

func statusLabel(outcome entity.ExecutionOutcome) string {
	switch outcome.Status {
	case entity.OutcomeCompletedReal:
		return "completed (real compose, send suppressed)"
	case entity.OutcomeCompletedMock:
		return "completed (mock fallback)"
	default:
		return fmt.Sprintf("failed: %s", outcome.FailureCode)
	}
}

func (i *Interface) printBanner() {
	fmt.Println(`
Cross-Platform Email Agent
Compose emails through the web UI of Gmail, Outlook, or any service.
Dispatch is always suppressed - nothing is actually sent.`)
}

func (i *Interface) printHelp() {
	fmt.Println(`
Available commands:
  help, h            - Show this help message
  provider <id>      - Target one provider (gmail, outlook, both)
  exit, quit, q      - Exit the application

To start a task, type an instruction in natural language:
  Send an email to alice@company.com about the quarterly review`)
}
