package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/memberdesk/memberdesk/internal/directory"
	httpmiddleware "github.com/memberdesk/memberdesk/internal/http"
	"github.com/memberdesk/memberdesk/internal/logger"
	"github.com/memberdesk/memberdesk/internal/server"
	"github.com/memberdesk/memberdesk/internal/store"
	postgresstore "github.com/memberdesk/memberdesk/internal/store/postgres"
	"github.com/memberdesk/memberdesk/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"MEMBERDESK_LISTEN"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"MEMBERDESK_CORS_ORIGINS"`

	// Operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"MEMBERDESK_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"MEMBERDESK_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`

	// Directory configuration
	Directory DirectoryFlags `embed:"" prefix:"directory-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"MEMBERDESK_POSTGRES_AUTO_MIGRATE"`
}

// DirectoryFlags configures the external organization-directory client. When
// BaseURL is empty the server falls back to an in-memory fake, which keeps
// local development working without directory credentials.
type DirectoryFlags struct {
	BaseURL    string        `help:"directory service API base URL" default:"" env:"MEMBERDESK_DIRECTORY_BASE_URL"`
	APIKey     string        `help:"directory service API key" default:"" env:"MEMBERDESK_DIRECTORY_API_KEY"`
	Timeout    time.Duration `help:"directory request timeout" default:"30s" env:"MEMBERDESK_DIRECTORY_TIMEOUT"`
	MaxRetries uint          `help:"directory request retry attempts" default:"3" env:"MEMBERDESK_DIRECTORY_MAX_RETRIES"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Dev)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("dev", globals.Dev).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "memberdesk-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	// Create stores based on store type
	var stores server.Stores

	switch c.StoreType {
	case "postgres":
		if c.PostgresStore.ConnString == "" {
			return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
		}

		// Create shared connection pool for all PostgreSQL stores
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		// Run migrations if enabled
		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		stores = server.Stores{
			Organizations: postgresstore.NewOrganizationStore(pool),
			Claims:        postgresstore.NewDomainClaimStore(pool),
			Memberships:   postgresstore.NewMembershipStore(pool),
			Stakeholders:  postgresstore.NewStakeholderStore(pool),
			Contacts:      postgresstore.NewContactStore(pool),
			Excluded:      postgresstore.NewExcludedDomainStore(pool),
		}
		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	default:
		orgs := store.NewMemoryOrganizationStore()
		stores = server.Stores{
			Organizations: orgs,
			Claims:        store.NewMemoryDomainClaimStore(orgs),
			Memberships:   store.NewMemoryMembershipStore(orgs),
			Stakeholders:  store.NewMemoryStakeholderStore(),
			Contacts:      store.NewMemoryContactStore(),
			Excluded:      store.NewMemoryExcludedDomainStore(),
		}
		log.Info().Msg("Using in-memory stores")
	}

	// Create the directory client
	var dir directory.Client
	if c.Directory.BaseURL != "" {
		dir = directory.NewHTTPClient(directory.Config{
			BaseURL:    c.Directory.BaseURL,
			APIKey:     c.Directory.APIKey,
			Timeout:    c.Directory.Timeout,
			MaxRetries: c.Directory.MaxRetries,
		})
		log.Info().Str("base_url", c.Directory.BaseURL).Msg("Using directory HTTP client")
	} else {
		dir = directory.NewFakeClient()
		log.Warn().Msg("No directory base URL configured, using in-memory fake directory. This should only be used in development!")
	}

	mux := http.NewServeMux()
	server.New(stores, dir).Register(mux)

	clientIPMiddleware := httpmiddleware.ClientIPMiddleware()
	requestLogger := httpmiddleware.RequestLogger(log)

	// API routes get CORS, everything else goes straight through
	corsHandler := withCORS(c.CORSOrigins, mux)
	handler := requestLogger(clientIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			corsHandler.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})))

	srv := configureHTTPServer(c.Listen, handler)

	// Shut down cleanly on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS adds CORS support to the API routes.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return middleware.Handler(h)
}
