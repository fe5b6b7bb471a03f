package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/observability"
	"github.com/ayusman/mudra/internal/recognition"
	"github.com/ayusman/mudra/internal/tray"
)

var version = "0.1.0"

var (
	configPath string
	staticDir  string
	liveServe  bool
	liveNoTray bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mudra",
		Short:         "mudra - hand-sign recognition service",
		Long:          "mudra recognizes fingerspelled letters and registered word signs from camera frames.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLiveCmd())
	rootCmd.AddCommand(newWordsCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket recognition service",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "directory of static web files (default: auto-detect)")
	return cmd
}

func newLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Recognize signs from the local camera",
		Args:  cobra.NoArgs,
		RunE:  runLiveCmd,
	}
	cmd.Flags().BoolVar(&liveServe, "serve", false, "also run the HTTP service with the live preview at /api/stream")
	cmd.Flags().BoolVar(&liveNoTray, "no-tray", false, "do not show the status menu")
	return cmd
}

func newWordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "words",
		Short: "Manage registered word signs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered words",
		Args:  cobra.NoArgs,
		RunE:  runWordsListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <dir>",
		Short: "Register one word per image in dir, named after the file",
		Args:  cobra.ExactArgs(1),
		RunE:  runWordsImportCmd,
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mudra v%s\n", version)
		},
	}
}

// setup loads config, initializes logging and builds the App.
func setup() (*config.Config, *app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)

	dir := staticDir
	if dir == "" {
		dir = findWebDir()
	}
	if dir != "" {
		log.Info().Str("dir", dir).Msg("serving static files")
	}

	a, err := app.New(cfg, app.Options{StaticDir: dir})
	if err != nil {
		return nil, nil, err
	}
	return cfg, a, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServeCmd(_ *cobra.Command, _ []string) error {
	_, a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	return a.Serve(ctx)
}

func runLiveCmd(_ *cobra.Command, _ []string) error {
	cfg, a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	if liveServe {
		go func() {
			if err := a.Serve(ctx); err != nil {
				log.Error().Err(err).Msg("HTTP server failed")
				stop()
			}
		}()
	}

	if !cfg.Tray || liveNoTray {
		return a.RunLive(ctx)
	}

	t := tray.New(a.WordMode())
	t.OnToggle(a.SetEnabled)
	t.OnWordMode(a.SetWordMode)
	t.OnQuit(stop)
	a.OnResult(func(r recognition.Result) { t.SetLastSign(r.Prediction) })

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.RunLive(ctx)
		t.Quit()
	}()

	// systray needs the main goroutine
	t.Run()
	stop()
	return <-errCh
}

func runWordsListCmd(cmd *cobra.Command, _ []string) error {
	_, a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	words := a.Words()
	out := cmd.OutOrStdout()
	for _, w := range words {
		fmt.Fprintln(out, w)
	}
	fmt.Fprintf(out, "%d word(s)\n", len(words))
	return nil
}

func runWordsImportCmd(cmd *cobra.Command, args []string) error {
	_, a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	n, err := a.ImportWordImages(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d word(s), %d registered\n", n, len(a.Words()))
	return nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mudra/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".mudra", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
