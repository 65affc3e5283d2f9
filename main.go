package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cidc/auth"
	"cidc/config"
	"cidc/dao/migrate"
	"cidc/dao/query"
	"cidc/gcloud"
	"cidc/ingestion"
	"cidc/logutils"
	"cidc/service"
	"cidc/template"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	configPath string
	adminEmail string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cidc-api",
	Short: "cidc-api ingests assay metadata and data uploads",
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		return logutils.Configure(cfg.Log.Level, cfg.Log.JSON)
	},
	RunE: func(c *cobra.Command, args []string) error {
		return serve(c.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	RunE: func(c *cobra.Command, args []string) error {
		return serve(c.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	RunE: func(c *cobra.Command, args []string) error {
		db, err := query.InitDB(cfg)
		if err != nil {
			return err
		}
		if err := migrate.Run(db); err != nil {
			return err
		}
		logutils.Log.Info("database schema is up to date")
		if adminEmail != "" {
			return migrate.SeedAdmin(db, adminEmail)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
	migrateCmd.Flags().StringVar(&adminEmail, "admin", "", "create an approved admin with this email")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := query.InitDB(cfg)
	if err != nil {
		return err
	}
	schemas, err := template.Load(cfg.Templates.Dir)
	if err != nil {
		return err
	}
	clients, err := gcloud.NewClients(ctx, cfg.GCS.Project)
	if err != nil {
		return err
	}
	defer func() {
		if err := clients.Close(); err != nil {
			logutils.Log.Errorf("closing cloud clients: %v", err)
		}
	}()
	publisher := gcloud.NewPublisher(clients.PubSub, cfg.GCS.UploadTopic, cfg.GCS.IAMTimeout)
	defer publisher.Stop()

	users := query.NewUserStore(db)
	keys := auth.NewKeySet(cfg.JWKSEndpoint(), nil, cfg.Auth.FetchTimeout, cfg.Auth.JWKSCacheTTL)
	authenticator := auth.NewAuthenticator(
		auth.NewVerifier(keys, cfg.Issuer(), cfg.Auth.ClientID, cfg.Auth.Leeway),
		auth.NewResolver(users),
	)
	coordinator := ingestion.New(ingestion.Deps{
		Schemas:        schemas,
		Validator:      template.NewValidator(schemas),
		Extractor:      template.NewExtractor(schemas),
		Grants:         gcloud.NewIAMGrants(clients.Storage, cfg.GCS.UploadRole, cfg.GCS.IAMTimeout),
		Jobs:           query.NewJobStore(db),
		Notifier:       publisher,
		Archive:        gcloud.NewTemplateArchive(clients.Storage, cfg.GCS.UploadBucket, cfg.GCS.IAMTimeout),
		Bucket:         cfg.GCS.UploadBucket,
		RevokeWhenIdle: cfg.Upload.RevokeWhenIdle,
	})

	gin.SetMode(gin.ReleaseMode)
	router := service.NewRouter(service.Handlers{
		Auth:       authenticator,
		Ingestion:  service.NewIngestionHandler(coordinator),
		UploadJobs: service.NewUploadJobHandler(coordinator),
		Users:      service.NewUserHandler(users),
		MinCLI:     cfg.MinCLIVersion,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logutils.Log.Infof("listening on %s", cfg.Server.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logutils.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logutils.Log.Fatal(err)
	}
}
