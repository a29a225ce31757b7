// ABOUTME: Root command and global flags for the rome CLI
// ABOUTME: Loads .env and configuration, sets up logging, and wires subcommands
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/app"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/config"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
)

// Output formats accepted by --format
const (
	formatAuto = "auto"
	formatText = "text"
	formatJSON = "json"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

// connectServices opens the query-side collaborators. Tests replace it.
var connectServices = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.Services, error) {
	return app.Connect(ctx, cfg, app.WithLogger(logger))
}

const banner = `
 ██████╗  ██████╗ ███╗   ███╗███████╗
 ██╔══██╗██╔═══██╗████╗ ████║██╔════╝
 ██████╔╝██║   ██║██╔████╔██║█████╗
 ██╔══██╗██║   ██║██║╚██╔╝██║██╔══╝
 ██║  ██║╚██████╔╝██║ ╚═╝ ██║███████╗
 ╚═╝  ╚═╝ ╚═════╝ ╚═╝     ╚═╝╚══════╝`

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rome",
		Short: "Ask questions about The History of Rome podcast",
		Long: banner + `

Retrieval-augmented question answering over The History of Rome podcast
transcripts. Ingest timestamped transcripts into a vector store, then ask
questions, search excerpts, or serve the HTTP and MCP interfaces.

Configuration comes from environment variables, an optional .env file,
and an optional TOML file named by CONFIG_FILE.`,
		SilenceUsage:      true,
		PersistentPreRunE: preRun,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", formatAuto, "Output format: auto, text or json")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewIngestCmd(),
		NewServeCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewEpisodeCmd(),
		NewStatsCmd(),
		NewStatusCmd(),
		NewExamplesCmd(),
		NewMCPCmd(),
		NewEvalCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func preRun(cmd *cobra.Command, args []string) error {
	switch outputFormat {
	case formatAuto, formatText, formatJSON:
	default:
		return fmt.Errorf("--format must be %s, %s or %s, got %q", formatAuto, formatText, formatJSON, outputFormat)
	}

	// A missing .env file is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) && verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not load .env: %v\n", err)
	}
	return nil
}

// loadConfig reads configuration and builds the logger for a command.
// Logs always go to stderr so stdout stays clean for results and MCP.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := cfg.LogLevel
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	logger := logging.Setup(level, cfg.LogFormat, cmd.ErrOrStderr())
	return cfg, logger, nil
}

// openServices loads configuration and connects the query-side collaborators
func openServices(cmd *cobra.Command) (*app.Services, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	services, err := connectServices(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return services, logger, nil
}
