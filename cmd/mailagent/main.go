package main

import (
	"fmt"
	"os"
	"strings"

	"mailagent/internal/bootstrap"

	"github.com/spf13/cobra"
)

var (
	providerFlag string
	headlessFlag bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mailagent [instruction]",
		Short: "Compose emails through arbitrary web UIs",
		Long: `mailagent locates and fills compose-form fields on web email
services (Gmail, Outlook, or any URL) from a natural-language
instruction. Dispatch is always suppressed - nothing is sent.

With an instruction argument the task runs once and exits; without
one an interactive console starts.`,
		Example: `  mailagent "send email to joe@example.com saying 'hello there'"
  mailagent --provider gmail "email alice@company.com about the quarterly review"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyHeadless()

			opts := bootstrap.Options{
				Mode:     bootstrap.ModeConsole,
				Provider: providerFlag,
			}

			if len(args) > 0 {
				opts.Mode = bootstrap.ModeOnce
				opts.Instruction = strings.Join(args, " ")
			}

			bootstrap.NewApp(opts).Run()

			return nil
		},
	}

	root.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "both",
		"provider to target: gmail, outlook, both, or a service URL")
	root.PersistentFlags().BoolVar(&headlessFlag, "headless", false,
		"run the browser without a visible window")

	root.AddCommand(newServeCmd())

	return root
}

// applyHeadless bridges the CLI flag into the env-driven config so the
// flag wins over .env without a second configuration path.
func applyHeadless() {
	if headlessFlag {
		os.Setenv("BROWSER_HEADLESS", "true")
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyHeadless()

			bootstrap.NewApp(bootstrap.Options{Mode: bootstrap.ModeServe}).Run()

			return nil
		},
	}
}
