package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vendhub/vendhub/internal/server"
	"github.com/vendhub/vendhub/internal/service"
)

const banner = `
__     __            _ _   _       _
\ \   / /__ _ __  __| | | | |_   _| |__
 \ \ / / _ \ '_ \/ _' | |_| | | | | '_ \
  \ V /  __/ | | \__,_|  _  | |_| | |_) |
   \_/ \___|_| |_|    |_| |_|\__,_|_.__/
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the VendHub API server",
		Long:  "Start the HTTP server that exposes the operator, token, audit, and document APIs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg := loadConfig()
	if dev {
		cfg.Logging.Level = "debug"
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	logger := newLogger(cfg.Logging)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store initialized", "driver", cfg.Store.Driver, "data_dir", resolveDataDir(cfg))

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = viper.GetString("auth.jwt_secret")
	}
	if jwtSecret == "" {
		jwtSecret = "vendhub-dev-secret-change-me"
		logger.Warn("auth.jwt_secret not configured, using insecure development default")
	}

	limiter := service.NewSlidingWindow()
	recorder := service.NewRecorder(st, logger)
	sessions := service.NewSessionService(st, jwtSecret, parseDuration(cfg.Auth.SessionExpiry, 24*time.Hour))
	tokens := service.NewTokenService(st, recorder, limiter, logger)
	gate := service.NewGate(st, limiter, recorder, logger)

	hasOperator, err := st.HasAnyOperator(context.Background())
	if err != nil {
		logger.Warn("failed to check for operators", "error", err)
	}
	if !hasOperator {
		logger.Warn("no operator account found - run: vendhub operator create")
	}

	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: parseDuration(cfg.Server.ShutdownTimeout, 30*time.Second),
		CORSOrigins:     cfg.Server.CORS.Origins,
		MaxBodySize:     parseSize(cfg.Server.MaxBodySize, 10*1024*1024),
		TokenHeader:     cfg.Auth.APITokenHeader,
		LoginRateLimit:  cfg.Auth.LoginRateLimit,
		DocumentDir:     filepath.Join(resolveDataDir(cfg), "documents"),
	}
	srv := server.New(srvCfg, st, sessions, tokens, gate, logger)

	fmt.Printf("→ VendHub %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
