// Package cli provides the command-line interface for preservica-upload.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/preservica-tools/preservica-upload/internal/config"
	"github.com/preservica-tools/preservica-upload/internal/logging"
	"github.com/preservica-tools/preservica-upload/internal/selfupdate"
	"github.com/preservica-tools/preservica-upload/internal/tui"
	"github.com/preservica-tools/preservica-upload/internal/version"
)

var (
	// Global flags
	envFile string
	verbose bool
	debug   bool

	// Self-update flags
	update  bool
	upgrade bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// errReported marks an error whose message was already shown to the user.
var errReported = errors.New("already reported")

// NewRootCmd creates the root command. Without a subcommand it opens the
// interactive upload screen.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "preservica-upload",
		Short: "Upload files and folders to Preservica",
		Long: `preservica-upload ` + version.Version + ` - Built: ` + version.BuildTime + `
Terminal tool for uploading local files and folders into a Preservica
repository folder.

Interactive mode (default):
  Browse local files on the left and Preservica folders on the right,
  select one of each and press u to upload.

Headless mode:
  preservica-upload upload --local PATH --folder REF

Configuration is read from PRESERVICA_* environment variables and an
optional .env file in the working directory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			mode := logging.ModeCLI
			if cmd == cmd.Root() && !update && !upgrade {
				// The terminal belongs to the UI.
				mode = logging.ModeTUI
			}
			logger = logging.NewLogger(mode)
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if update || upgrade {
				return runSelfUpdate(GetContext(), cmd.OutOrStdout())
			}
			return runInteractive(GetContext())
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a dotenv file (default: .env in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Flags().BoolVarP(&update, "update", "u", false, "Update the tool by pulling the latest changes from git")
	rootCmd.Flags().BoolVar(&upgrade, "upgrade", false, "Same as --update")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\n🛑 Received signal %v, cancelling operations...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}
	if logger != nil {
		_ = logger.Close()
	}
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newFoldersCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runInteractive(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := GetLogger()
	app, err := newApplication(cfg, log, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	log.Info().Str("server", cfg.ServerHost()).Str("dir", wd).Msg("starting interactive session")

	return tui.Run(ctx, tui.Options{
		Cache:    app.cache,
		Uploader: app.orchestrator,
		StartDir: wd,
		Logger:   log,
	}, app.bus)
}

func runSelfUpdate(ctx context.Context, out io.Writer) error {
	override := ""
	if cfg, err := config.Load(envFile); err == nil {
		override = cfg.InstallDir
	}

	dir, err := selfupdate.InstallDir(override)
	if err != nil {
		return err
	}

	updater := &selfupdate.Updater{Dir: dir, Out: out}
	if err := updater.Run(ctx); err != nil {
		var pullErr *selfupdate.PullError
		switch {
		case errors.Is(err, selfupdate.ErrGitNotFound):
			fmt.Fprintf(out, "❌ Error: %v.\n", err)
		case errors.As(err, &pullErr):
			fmt.Fprintf(out, "❌ Error updating: %v\n", err)
			fmt.Fprint(out, pullErr.Stderr)
		default:
			fmt.Fprintf(out, "❌ Error updating: %v\n", err)
		}
		return fmt.Errorf("%w: %v", errReported, err)
	}
	return nil
}
