package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/evidenca/internal/api"
	"github.com/erazemk/evidenca/internal/auth"
	"github.com/erazemk/evidenca/internal/category"
	"github.com/erazemk/evidenca/internal/config"
	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/imaging"
	"github.com/erazemk/evidenca/internal/logging"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/service"
	"github.com/erazemk/evidenca/internal/store"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("evidenca", flag.ContinueOnError)

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")

	fs.StringVar(&cfg.AdminUser, "user", cfg.AdminUser, "")
	fs.StringVar(&cfg.AdminUser, "u", cfg.AdminUser, "")

	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: evidenca [flags]

Flags:
  -d, -db <path>          SQLite database path (default: evidenca.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Every flag can also be set through EVIDENCA_* environment variables or a
.env file in the working directory. Flags win.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	_, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	table := category.Default()
	if cfg.CategoriesFile != "" {
		t, err := category.LoadFile(cfg.CategoriesFile)
		if err != nil {
			return fmt.Errorf("loading categories: %w", err)
		}
		table = t
		slog.Info("category table loaded", "path", cfg.CategoriesFile, "categories", table.Len())
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DBPath); errors.Is(err, os.ErrNotExist) {
		database, password, err := initDatabase(cfg.DBPath, cfg.AdminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cfg.DBPath, cfg.AdminUser, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		gatherer = reg
	}

	svc := service.New(database, table, m)
	svc.Photos = imaging.Options{
		MaxDimension: cfg.PhotoMaxDimension,
		MaxBytes:     cfg.PhotoMaxBytes,
	}

	handler := api.NewRouter(database, svc, api.Options{
		Issuer:        auth.Issuer{Secret: jwtSecret, TTL: cfg.TokenTTL},
		Metrics:       m,
		Gatherer:      gatherer,
		LoginInterval: cfg.LoginInterval,
		LoginBurst:    cfg.LoginBurst,
		QRSize:        cfg.QRSize,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.Addr, "categories", table.Len(), "metrics", cfg.Metrics)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}

	slog.Info("server stopped, closing database")
	return nil
}

// initDatabase creates a new database, ensures the schema, and creates the admin user.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail(fmt.Errorf("ensuring schema: %w", err))
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail(fmt.Errorf("hashing password: %w", err))
	}

	if _, err := store.CreateUser(context.Background(), database, adminUsername, string(hash), model.RoleAdmin); err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
