package main

import (
	"log"

	_ "github.com/dhima/dbclient/docs" // Import generated docs
	"github.com/dhima/dbclient/internal/api"
	"github.com/dhima/dbclient/internal/logging"
	"go.uber.org/zap"
)

// @title Statement Gateway API
// @version 1.0
// @description HTTP front end for a minimal database client running prepared INSERT, SELECT, UPDATE and DELETE statements.
// @description
// @description Every statement endpoint takes a query with `?` placeholders, a type-tag string
// @description (`i` integer, `d` double, `s` string, `b` base64 blob) and one value per tag.
// @description Successful mutations are published to Kafka as audit events when brokers are configured.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Bootstrap logger for failures that happen before config is loaded.
	bootstrap, err := logging.NewFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	srv, err := api.NewServer()
	if err != nil {
		bootstrap.Fatal("failed to start statement gateway", zap.Error(err))
	}

	if err := srv.Serve(); err != nil {
		bootstrap.Fatal("api server stopped", zap.Error(err))
	}
}
