package main

import (
	"context"
	"fmt"

	"github.com/sakya-app/sakya/internal/config"
	myHTTP "github.com/sakya-app/sakya/internal/handler/http"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/relay"
	"github.com/sakya-app/sakya/internal/server"
	"github.com/sakya-app/sakya/internal/service"
	"github.com/sakya-app/sakya/internal/store"
	"github.com/sakya-app/sakya/internal/token"
	"github.com/sakya-app/sakya/migrations"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("sakya-server")
	cfg, err := config.GetServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	ctx := context.Background()

	identityDB, err := store.Connect(ctx, cfg.Storage.DB.Driver, cfg.Storage.DB.IdentityDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to identity store")
	}
	if err := identityDB.Migrate(migrations.ScopeIdentity); err != nil {
		log.Fatal().Err(err).Msg("error migrating identity store")
	}

	syncDB, err := store.Connect(ctx, cfg.Storage.DB.Driver, cfg.Storage.DB.SyncDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to sync store")
	}
	if err := syncDB.Migrate(migrations.ScopeSync); err != nil {
		log.Fatal().Err(err).Msg("error migrating sync store")
	}

	repos := store.NewRepositories(identityDB, syncDB, log)

	jwt, err := token.NewJWTService(cfg.App.TokenSignKey, cfg.App.TokenIssuer, cfg.App.TokenDuration)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating token service")
	}

	services := service.NewServices(repos, jwt, cfg, log)

	rl := relay.NewRelay(services.IdentityService, repos.UpdateRepository, repos.SnapshotRepository, cfg.App.Version, log)
	handler := myHTTP.NewHandler(services, rl, log)

	srv, err := server.NewServer(handler, rl, cfg.Server, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	srv.RunServer()
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
