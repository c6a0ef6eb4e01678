package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/staple-duck/snh/config"
	"github.com/staple-duck/snh/migration"
	"github.com/staple-duck/snh/services"
)

func main() {
	var (
		command = flag.String("command", "all", "Command to execute: migrate, seed, verify, status, all")
		schema  = flag.String("schema", "", "Schema to create the node table in (default: search_path)")
		noSeed  = flag.Bool("no-seed", false, "Skip seeding when running all")
		dryRun  = flag.Bool("dry-run", false, "Roll back instead of committing")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level := services.ParseLogLevel(cfg.Logging.Level)
	if *verbose {
		level = services.LogLevelDebug
	}
	logger := services.NewLoggerFromConfig(&services.LoggerConfig{
		Level:  level,
		Format: services.LogFormatText,
	})

	ctx := context.Background()
	m, err := migration.Open(ctx, &migration.Config{
		DSN:    services.PostgresConfigFrom(cfg).BuildConnectionString(),
		Schema: *schema,
		DryRun: *dryRun,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer m.Close()

	if err := run(ctx, m, logger, *command, !*noSeed); err != nil {
		logger.Error("Setup failed", err, services.String("command", *command))
		m.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, m *migration.Migrator, logger services.Logger, command string, seed bool) error {
	switch command {
	case "migrate":
		return m.Migrate(ctx)
	case "seed":
		_, err := m.Seed(ctx, migration.DefaultSeed)
		return err
	case "verify":
		return m.Verify(ctx)
	case "status":
		status, err := m.Status(ctx)
		if err != nil {
			return err
		}
		logger.Info("Node table status",
			services.Bool("table_exists", status.TableExists),
			services.Int("nodes", int(status.Nodes)),
			services.Int("roots", int(status.Roots)))
		return nil
	case "all":
		if err := m.Migrate(ctx); err != nil {
			return err
		}
		if seed {
			if _, err := m.Seed(ctx, migration.DefaultSeed); err != nil {
				return err
			}
		}
		return m.Verify(ctx)
	default:
		log.Printf("Unknown command %q", command)
		flag.Usage()
		os.Exit(2)
		return nil
	}
}
