// Command statement runs a single prepared statement against the configured
// database and prints the result as JSON.
//
//	statement -verb select -types i -query 'SELECT id, name FROM users WHERE id = ?' 1
//
// Positional arguments are the parameter values, one per type tag. A value
// of \N binds NULL; blob values are base64.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/dhima/dbclient/internal/logging"
	"github.com/dhima/dbclient/internal/statements"
	"github.com/dhima/dbclient/internal/storage"
	"github.com/dhima/dbclient/pkg/config"
	"github.com/dhima/dbclient/platform/events"
	"go.uber.org/zap"
)

// nullValue is the argument that binds SQL NULL.
const nullValue = `\N`

func main() {
	verb := flag.String("verb", storage.OpSelect, "statement verb: insert, select, update or remove")
	query := flag.String("query", "", "SQL text with ? placeholders")
	types := flag.String("types", "", "one type tag per value: i, d, s or b")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	logger, err := logging.NewFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*verb, *query, *types, flag.Args(), *timeout, logger, os.Stdout); err != nil {
		logger.Fatal("statement failed", zap.String("stage", statements.Stage(err)), zap.Error(err))
	}
}

func run(verb, query, types string, args []string, timeout time.Duration, logger logging.Logger, out io.Writer) error {
	if query == "" {
		return errors.New("-query is required")
	}

	params, err := parseValues(types, args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := storage.Open(ctx, cfg.StorageOptions(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	var publisher interface {
		statements.AuditPublisher
		Close() error
	} = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Zap())
	}
	defer func() { _ = publisher.Close() }()

	return execute(ctx, statements.NewService(client, publisher, logger), verb, statements.Request{Query: query, Params: params}, out)
}

// execute runs req with the named verb and writes the JSON result to out.
func execute(ctx context.Context, svc *statements.Service, verb string, req statements.Request, out io.Writer) error {
	var (
		result any
		err    error
	)
	switch verb {
	case storage.OpInsert:
		var id int64
		id, err = svc.Insert(ctx, req)
		result = map[string]int64{"id": id}
	case storage.OpSelect:
		result, err = svc.Select(ctx, req)
	case storage.OpUpdate:
		result, err = svc.Update(ctx, req)
	case storage.OpRemove:
		result, err = svc.Remove(ctx, req)
	default:
		return fmt.Errorf("unknown verb %q", verb)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// parseValues converts command-line strings into params of the tagged kinds.
func parseValues(types string, args []string) ([]storage.Param, error) {
	values := make([]any, len(args))
	for i, arg := range args {
		if arg == nullValue {
			continue
		}
		if i >= len(types) {
			values[i] = arg
			continue
		}

		var err error
		switch storage.Kind(types[i]) {
		case storage.KindInteger:
			values[i], err = strconv.ParseInt(arg, 10, 64)
		case storage.KindDouble:
			values[i], err = strconv.ParseFloat(arg, 64)
		case storage.KindBlob:
			values[i], err = base64.StdEncoding.DecodeString(arg)
		default:
			values[i] = arg
		}
		if err != nil {
			return nil, fmt.Errorf("value %d (%q): %w", i+1, arg, err)
		}
	}
	return storage.Bind(types, values...)
}
