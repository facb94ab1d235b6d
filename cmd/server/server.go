package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stephnangue/notary/auth"
	"github.com/stephnangue/notary/auth/session"
	"github.com/stephnangue/notary/auth/token"
	"github.com/stephnangue/notary/backend/hasura"
	"github.com/stephnangue/notary/config"
	notaryhttp "github.com/stephnangue/notary/http"
	"github.com/stephnangue/notary/listener"
	"github.com/stephnangue/notary/listener/api"
	log "github.com/stephnangue/notary/logger"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	subsystemCore     = "core"
	subsystemBackend  = "hasura"
	subsystemTokens   = "tokens"
	subsystemSessions = "sessions"
)

var (
	configPath string

	ServerCmd = &cobra.Command{
		Use:   "server",
		Short: "This command starts a Notary server that responds to API requests",
		Long: `
Usage: notary server [options]

  This command starts a Notary server that answers account requests and
  the GraphQL engine's authorization webhook.

  Start a server with a configuration file:

      $ notary server --config=/etc/notary/config.hcl
  `,
		RunE: run,
	}

	wg sync.WaitGroup

	cleanupGuard sync.Once
)

func init() {
	ServerCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (e.g., path/to/notary.hcl)")
}

func run(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		return fmt.Errorf("config file path is required. Use -c or --config flag")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", configPath)
	}

	config, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// construct the logger with gate closed during initialization
	logger := buildGatedLogger(config)
	defer logger.Close()

	infoKeys := make([]string, 0, 10)
	info := make(map[string]string)
	info["log level"] = config.LogLevel
	infoKeys = append(infoKeys, "log level")
	info["log file"] = config.LogFile
	infoKeys = append(infoKeys, "log file")
	info["log format"] = config.LogFormat
	infoKeys = append(infoKeys, "log format")
	info["backend"] = config.Backend.Type
	infoKeys = append(infoKeys, "backend")
	info["backend endpoint"] = config.Backend.Endpoint
	infoKeys = append(infoKeys, "backend endpoint")
	info["token ttl"] = config.Tokens.TTL().String()
	infoKeys = append(infoKeys, "token ttl")
	info["session cookie"] = config.Session.Name()
	infoKeys = append(infoKeys, "session cookie")

	backend, err := hasura.NewClient(hasura.Config{
		Endpoint:    config.Backend.Endpoint,
		AdminSecret: config.Backend.AdminSecret,
		Timeout:     config.Backend.Timeout(),
	}, logger.WithSubsystem(subsystemBackend))
	if err != nil {
		return fmt.Errorf("failed to construct the backend client: %w", err)
	}

	tokens, err := token.NewStore(backend, logger.WithSubsystem(subsystemTokens), &token.StoreConfig{
		CacheSize:     config.Tokens.Size(),
		ReaperWorkers: config.Tokens.ReaperWorkers,
		ReaperQueue:   config.Tokens.ReaperQueue,
	})
	if err != nil {
		return fmt.Errorf("failed to construct the token store: %w", err)
	}
	defer tokens.Close()

	sessions, err := session.NewManager(session.Config{
		CookieName:    config.Session.Name(),
		AuthKey:       config.Session.AuthKey,
		EncryptionKey: config.Session.EncryptionKey,
		MaxAge:        config.Session.MaxAge(),
		Secure:        config.Session.Secure,
	}, logger.WithSubsystem(subsystemSessions))
	if err != nil {
		return fmt.Errorf("failed to construct the session manager: %w", err)
	}

	authenticator := auth.NewAuthenticator(backend, tokens,
		config.Tokens.TTL(), config.Tokens.Factor(),
		logger.WithSubsystem(subsystemCore))

	httpHandler := notaryhttp.Handler(&notaryhttp.HandlerProperties{
		Authenticator: authenticator,
		Tokens:        tokens,
		Sessions:      sessions,
		Users:         backend,
		TokenTTL:      config.Tokens.TTL(),
		Logger:        logger,
	})

	lns, err := initListeners(httpHandler, config, logger, &infoKeys, info)
	if err != nil {
		return err
	}

	var shutdownErrs []error
	var shutdownErrsMu sync.Mutex

	listenerCloseFunc := func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Stopping all listeners\n")
		for _, ln := range lns {
			if err := ln.Stop(); err != nil {
				shutdownErrsMu.Lock()
				shutdownErrs = append(shutdownErrs, fmt.Errorf("failed to stop %s listener at %s: %w", ln.Type(), ln.Addr(), err))
				shutdownErrsMu.Unlock()
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Listener stopped successfully: type=%s, address=%s\n", ln.Type(), ln.Addr())
			}
		}
	}

	// Listeners are stopped exactly once, whether through the deferred
	// guard on an early error or the explicit call at shutdown.
	defer cleanupGuard.Do(listenerCloseFunc)

	sort.Strings(infoKeys)
	fmt.Fprintf(cmd.OutOrStdout(), "\n==> Notary server configuration:\n\n")

	titleCaser := cases.Title(language.English, cases.NoLower)

	for _, k := range infoKeys {
		fmt.Fprintf(cmd.OutOrStdout(), "%24s: %s\n", titleCaser.String(k), info[k])
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, len(lns))
	var listenerErrs []error
	totalListeners := len(lns)

	for _, ln := range lns {
		ln := ln
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ln.Start(ctx); err != nil {
				errChan <- err
			}
		}()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n==> Notary server started! Log data will stream in below:\n")
	logger.OpenGate()

	// Wait for shutdown: a signal, or every listener failing.
	shutdownTriggered := false
	for !shutdownTriggered {
		select {
		case err := <-errChan:
			listenerErrs = append(listenerErrs, err)
			fmt.Fprintf(cmd.OutOrStdout(), "Listener error occurred: failed_count=%d, total_listeners=%d\n", len(listenerErrs), totalListeners)
			if len(listenerErrs) >= totalListeners {
				shutdownTriggered = true
				stop()
			}
		case <-ctx.Done():
			fmt.Fprintf(cmd.OutOrStdout(), "Notary shutdown triggered\n")
			shutdownTriggered = true
		}
	}

	cleanupGuard.Do(listenerCloseFunc)
	wg.Wait()

	close(errChan)
	for err := range errChan {
		listenerErrs = append(listenerErrs, err)
	}

	if len(listenerErrs) > 0 {
		aggregated := errors.Join(listenerErrs...)
		fmt.Fprintf(cmd.OutOrStdout(), "Listener errors occurred during runtime: %v, error_count=%d\n", aggregated, len(listenerErrs))
	}

	if len(shutdownErrs) > 0 {
		aggregated := errors.Join(shutdownErrs...)
		fmt.Fprintf(cmd.OutOrStdout(), "Shutdown completed with errors: %v, error_count=%d\n", aggregated, len(shutdownErrs))
		return aggregated
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server shutdown completed successfully\n")
	return nil
}

func buildGatedLogger(config *config.Config) *log.GatedLogger {
	logConfig := &log.Config{
		Level:     log.ParseLogLevel(config.LogLevel),
		Subsystem: subsystemCore,
		FileConfig: &log.FileConfig{
			Filename:   config.LogFile,
			MaxSize:    config.LogRotateMegabytes,
			MaxBackups: config.LogRotateMaxFiles,
		},
		Format:  log.ParseOutputFormat(config.LogFormat),
		Outputs: []io.Writer{os.Stdout},
	}

	gateConfig := log.GatedWriterConfig{
		Underlying:    os.Stdout,
		InitialState:  log.GateClosed,
		MaxBufferSize: 10 * 1024 * 1024, // 10MB buffer for initialization logs
	}

	gatedLogger, _ := log.NewGatedLogger(logConfig, gateConfig)

	return gatedLogger
}

func initListeners(handler http.Handler, config *config.Config, logger *log.GatedLogger, infoKeys *[]string, info map[string]string) ([]listener.Listener, error) {
	if len(config.Listeners) == 0 {
		return nil, errors.New("at least one listener block is required")
	}

	lns := make([]listener.Listener, 0, len(config.Listeners))
	for i, block := range config.Listeners {
		ln, err := api.NewApiListener(api.ApiListenerConfig{
			Logger:      logger,
			Address:     block.Address,
			TLSCertFile: block.TLSCertFile,
			TLSKeyFile:  block.TLSKeyFile,
			TLSEnabled:  block.TLSEnabled,
		}, handler)
		if err != nil {
			return nil, fmt.Errorf("failed to construct listener %q: %w", block.Name, err)
		}
		lns = append(lns, ln)

		key := fmt.Sprintf("listener %d", i+1)
		scheme := "http"
		if block.TLSEnabled {
			scheme = "https"
		}
		info[key] = fmt.Sprintf("%s (%s://%s)", block.Name, scheme, block.Address)
		*infoKeys = append(*infoKeys, key)
	}

	return lns, nil
}
