package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keladiary/core/internal/adapters/repository"
	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/database"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/infrastructure/metrics"
	"github.com/keladiary/core/internal/infrastructure/server"
	"github.com/keladiary/core/internal/ports"
)

// Set with -ldflags at build time.
var (
	Version   = "2.0.0"
	BuildDate = "unknown"
	GitCommit = "development"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Kela Diary API server",
		Long:  "Start the Kela Diary API server with all configured routes, middleware and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd)
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage postgres storage migrations (up, down, version)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Run up migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return runMigration(cmd, "up", steps)
		},
	}
	upCmd.Flags().Int("steps", 0, "number of migrations to apply (0 = all)")

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Run down migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return runMigration(cmd, "down", steps)
		},
	}
	downCmd.Flags().Int("steps", 0, "number of migrations to roll back (0 = all)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMigrationVersion(cmd)
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, versionCmd)
	return migrateCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create local accounts in the configured store",
	}

	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("email and password are required")
			}
			if username == "" {
				username = email
			}
			return createUser(cmd, ports.RegisterRequest{Username: username, Email: email, Password: password})
		},
	}
	createUserCmd.Flags().String("username", "", "display name (defaults to the email)")
	createUserCmd.Flags().String("email", "", "account email (required)")
	createUserCmd.Flags().String("password", "", "account password, at least 6 characters (required)")

	userCmd.AddCommand(createUserCmd)
	return userCmd
}

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration as TOML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "keladiary.toml"
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if err := config.WriteDefaultFile(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print Kela Diary version",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Kela Diary Core v%s\n", Version)
			fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
			fmt.Fprintf(out, "Go: %s\n", runtime.Version())
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, appLogger, nil
}

// openApp opens the configured store and restores every service from it.
func openApp(ctx context.Context, cfg *config.Config, reg *metrics.Registry, log *logger.Logger) (*server.App, error) {
	kv, err := repository.OpenKVStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	app, err := server.NewApp(ctx, cfg, kv, reg, log)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return app, nil
}

// withApp runs fn against a restored application and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *server.App) error) error {
	cfg, appLogger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer appLogger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := openApp(ctx, cfg, nil, appLogger)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

func runServer(cmd *cobra.Command) error {
	cfg, appLogger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.New()
	}

	app, err := openApp(ctx, cfg, reg, appLogger)
	if err != nil {
		appLogger.Errorw("Failed to initialize application", "error", err)
		return err
	}
	defer app.Close()

	srv := server.New(cfg, app, appLogger)

	appLogger.Infow("Starting Kela Diary API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"storage", cfg.Storage.Backend,
		"ai_provider", cfg.AI.Provider,
	)

	if err := srv.Run(ctx); err != nil {
		appLogger.Errorw("Server stopped with error", "error", err)
		return err
	}
	appLogger.Infow("Server stopped")
	return nil
}

func openMigrator(cmd *cobra.Command) (*database.DB, *database.Migrator, error) {
	cfg, appLogger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	defer appLogger.Close()

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	m, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, m, nil
}

func runMigration(cmd *cobra.Command, direction string, steps int) error {
	db, m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	var changed bool
	switch {
	case direction == "up" && steps > 0:
		changed, err = m.Steps(steps)
	case direction == "up":
		changed, err = m.Up()
	case steps > 0:
		changed, err = m.Steps(-steps)
	default:
		changed, err = m.Down()
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if !changed {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Migration %s completed successfully\n", direction)
	}
	return nil
}

func showMigrationVersion(cmd *cobra.Command) error {
	db, m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\n", version)
	fmt.Fprintf(cmd.OutOrStdout(), "Dirty: %t\n", dirty)
	return nil
}

func createUser(cmd *cobra.Command, req ports.RegisterRequest) error {
	return withApp(cmd, func(ctx context.Context, app *server.App) error {
		resp, err := app.Auth.Register(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		// Registering signs the new account in; the CLI leaves no session behind.
		if err := app.Auth.Logout(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User created successfully:\n")
		fmt.Fprintf(out, "  ID: %d\n", resp.User.ID)
		fmt.Fprintf(out, "  Email: %s\n", resp.User.Email)
		fmt.Fprintf(out, "  Username: %s\n", resp.User.Username)
		return nil
	})
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')

	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", path)
	return nil
}
