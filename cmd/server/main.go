// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/crowdbox/internal/api/connect"
	"github.com/osa030/crowdbox/internal/api/crowdboxv1/crowdboxv1connect"
	"github.com/osa030/crowdbox/internal/api/web"
	"github.com/osa030/crowdbox/internal/app/filter"
	"github.com/osa030/crowdbox/internal/app/session"
	"github.com/osa030/crowdbox/internal/infra/config"
	"github.com/osa030/crowdbox/internal/infra/logger"
	"github.com/osa030/crowdbox/internal/infra/settingsfile"
	"github.com/osa030/crowdbox/internal/infra/spotify"
)

var (
	app        = kingpin.New("crowdbox-server", "crowdbox venue jukebox server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	if err := validateFilterConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	spotifyClient, err := spotify.New(spotify.Config{
		ClientID:       cfg.Spotify.ClientID,
		ClientSecret:   cfg.Spotify.ClientSecret,
		RedirectURL:    cfg.Spotify.RedirectURL,
		RefreshToken:   cfg.Spotify.RefreshToken,
		TokenFile:      cfg.Spotify.TokenFile,
		Market:         cfg.Spotify.Market,
		RefreshTimeout: config.Ms(cfg.Spotify.RefreshTimeoutMs),
		RequestTimeout: config.Ms(cfg.Spotify.RequestTimeoutMs),
		CacheSize:      cfg.Spotify.CacheSize,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create Spotify client")
	}

	store := settingsfile.New(cfg.Settings.Path)
	sessionMgr, err := session.NewManager(cfg, spotifyClient, store)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}
	zlog.Info().Msgf("Settings file: %s (watch=%t)", store.Path(), cfg.Settings.WatchEnabled())

	mux := http.NewServeMux()

	listenerPath, listenerHandler := crowdboxv1connect.NewListenerServiceHandler(
		apiconnect.NewListenerService(sessionMgr, cfg),
	)
	adminPath, adminHandler := crowdboxv1connect.NewAdminServiceHandler(
		apiconnect.NewAdminService(sessionMgr, cfg),
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg)),
	)
	mux.Handle(listenerPath, listenerHandler)
	mux.Handle(adminPath, adminHandler)
	web.NewHandler(sessionMgr, cfg).Register(mux)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	ctx := context.Background()
	if err := sessionMgr.Start(ctx); err != nil {
		sessionMgr.Close()
		return errors.Wrap(err, "failed to start session")
	}
	if !spotifyClient.Authorized() {
		zlog.Warn().Msgf("Open http://<host>%s/auth/login?token=<admin token> to connect a Spotify account", cfg.Server.Addr)
	}

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session closed, shutting down...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close session manager first to end active streams
	sessionMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for name, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-24s %-24s - %s [codes: %s]\n", name, f.Name(), f.Description(), codes)
	}
}

// validateFilterConfig rejects unknown filter names and invalid settings.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		factory, exists := registry[filterName]
		if !exists {
			return errors.Newf("unknown filter %q (see list-filters)", filterName)
		}
		if !filterCfg.Enabled {
			continue
		}
		if err := factory().ValidateConfig(filterCfg.Settings); err != nil {
			return errors.Wrapf(err, "filter %s", filterName)
		}
	}

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
