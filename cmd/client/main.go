package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kirimku/smartseller-storefront-sub001/internal/api"
	"github.com/kirimku/smartseller-storefront-sub001/internal/cli"
	"github.com/kirimku/smartseller-storefront-sub001/internal/crypto"
	"github.com/kirimku/smartseller-storefront-sub001/internal/monitor"
	"github.com/kirimku/smartseller-storefront-sub001/internal/session"
	"github.com/kirimku/smartseller-storefront-sub001/internal/storage"
	"github.com/kirimku/smartseller-storefront-sub001/internal/storage/boltdb"
	"github.com/kirimku/smartseller-storefront-sub001/internal/storage/sqlite"
	"github.com/kirimku/smartseller-storefront-sub001/internal/transport"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// sessionStorage объединяет интерфейс хранилища с закрытием соединения
type sessionStorage interface {
	storage.SessionStorage
	Close() error
}

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "storefront-session.db", "Path to local session database")
	storageName := flag.String("storage", "bolt", "Storage backend: bolt or sqlite")
	email := flag.String("email", "", "Customer email for login")
	password := flag.String("password", "", "Password (not recommended, use env var or file)")
	passwordFile := flag.String("password-file", "", "Path to file containing the password")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}

	command := args[0]
	ctx := context.Background()

	// Открываем выбранное хранилище
	var (
		st  sessionStorage
		err error
	)
	switch *storageName {
	case "bolt":
		st, err = boltdb.New(ctx, *dbPath)
	case "sqlite":
		st, err = sqlite.New(ctx, *dbPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown storage backend: %s\n", *storageName)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open session database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close session database", "error", err)
		}
	}()

	// Секрет OS-сессии: его потеря превращает сохраненный ciphertext
	// в мусор, что эквивалентно мягкому logout
	secret, err := crypto.LoadOrCreateSessionSecret()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load session secret: %v\n", err)
		os.Exit(1)
	}

	// Composition root: все компоненты делят один store и один refresher,
	// поэтому single-flight guard общий для перехватчика и монитора
	apiClient := api.NewClient(*serverURL)
	store := session.NewStore(st, secret, nil)
	refresher := session.NewRefresher(apiClient, store, nil)
	csrf := transport.NewCSRFManager(apiClient)
	interceptor := transport.NewInterceptor(nil, store, refresher, csrf, nil)
	mon := monitor.New(store, refresher, monitor.Config{}, monitor.TerminalNotifier{W: os.Stderr}, nil)
	defer mon.Close()

	app := cli.New(apiClient, store, refresher, interceptor, mon)
	passwords := cli.Passwords{FromFile: *passwordFile, FromArgs: *password}

	switch command {
	case "login":
		err = app.RunLogin(ctx, *email, passwords)
	case "logout":
		err = app.RunLogout(ctx)
	case "status":
		err = app.RunStatus(ctx)
	case "refresh":
		err = app.RunRefresh(ctx)
	case "watch":
		err = app.RunWatch(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		cli.PrintUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("SmartSeller Storefront Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
