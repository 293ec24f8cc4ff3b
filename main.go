package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"gravmcp/gravatar"
	"gravmcp/server"
	"gravmcp/tools"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", os.Getenv("GRAVMCP_CONFIG"), "Path to YAML config")
	configCmd := flag.String("config-cmd", "", "Config command: 'init' or 'validate'")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	stdio := flag.Bool("stdio", false, "Serve MCP over stdio instead of HTTP")
	flag.Parse()

	level, err := parseLogLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", *logLevel, err)
	}

	// Stdio mode owns stdout for the MCP transport; logs go to stderr.
	logOut := os.Stdout
	if *stdio {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: level}))

	configFile := *configPath
	if configFile == "" {
		configFile = "./config.yaml"
	}

	if *configCmd != "" {
		switch *configCmd {
		case "init":
			if err := runConfigInit(configFile); err != nil {
				log.Fatalf("config init failed: %v", err)
			}
			logger.Info("configuration initialized", "path", configFile)
		case "validate":
			if _, err := server.LoadConfig(configFile); err != nil {
				log.Fatalf("config validation failed: %v", err)
			}
			logger.Info("configuration is valid", "path", configFile)
		default:
			log.Fatalf("unknown config command %q. Use 'init' or 'validate'", *configCmd)
		}
		return
	}

	cfg, err := server.LoadConfig(configFile)
	if err != nil {
		if *configPath == "" && errors.Is(err, os.ErrNotExist) {
			// No config anywhere; fall back to defaults plus env vars.
			cfg, err = server.LoadConfig("")
		}
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *stdio); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg server.Config, logger *slog.Logger, stdio bool) error {
	gravClient := gravatar.NewClient(
		cfg.Gravatar.RestBase,
		cfg.Gravatar.AvatarBase,
		gravatar.WithAPIKey(cfg.Gravatar.APIKey),
		gravatar.WithHTTPClient(&http.Client{Timeout: cfg.Gravatar.Timeout}),
	)

	app, err := server.NewApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	validate := func(token string) (tools.AuthInfo, error) {
		grant, err := app.Tokens.ValidateAccessToken(token)
		if err != nil {
			return tools.AuthInfo{}, err
		}
		return tools.AuthInfo{
			Subject:     grant.Subject,
			Label:       grant.Identity.Label,
			AccessToken: grant.TokenSet.AccessToken,
		}, nil
	}

	mcpServer := tools.NewServer(tools.Options{
		Name:     "gravmcp",
		Version:  version,
		Gravatar: gravClient,
		Validate: validate,
		Logger:   logger,
	})

	if stdio {
		logger.Info("serving MCP over stdio")
		return tools.ServeStdio(mcpServer)
	}

	app.MCP = tools.NewHTTPHandler(mcpServer, validate)
	handler := app.Routes()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Store.Janitor(ctx, time.Minute)
		return nil
	})

	if cfg.Server.DevMode {
		srv := &http.Server{
			Addr:         cfg.Server.ListenAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		}
		g.Go(func() error { return serve(ctx, srv, logger, "dev") })
	} else {
		m := &autocert.Manager{
			Cache:      autocert.DirCache("./tls-cache"),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.Server.TLS.Domains...),
			Email:      cfg.Server.TLS.Email,
		}

		httpRedirect := &http.Server{
			Addr:    ":80",
			Handler: m.HTTPHandler(http.HandlerFunc(redirectToHTTPS)),
		}
		g.Go(func() error { return serve(ctx, httpRedirect, logger, "http-redirect") })

		httpsSrv := &http.Server{
			Addr:    ":443",
			Handler: handler,
			TLSConfig: &tls.Config{
				GetCertificate: m.GetCertificate,
				MinVersion:     tls.VersionTLS12,
			},
		}
		g.Go(func() error {
			logger.Info("server listening", "mode", "prod", "addr", httpsSrv.Addr)
			go shutdownOnCancel(ctx, httpsSrv, logger)
			if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func serve(ctx context.Context, srv *http.Server, logger *slog.Logger, mode string) error {
	logger.Info("server listening", "mode", mode, "addr", srv.Addr)
	go shutdownOnCancel(ctx, srv, logger)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func shutdownOnCancel(ctx context.Context, srv *http.Server, logger *slog.Logger) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func redirectToHTTPS(w http.ResponseWriter, r *http.Request) {
	target := "https://" + r.Host + r.URL.RequestURI()
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

func runConfigInit(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := yaml.Marshal(server.DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level")
	}
}
