package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/kirimku/smartseller-storefront-sub001/internal/api"
	"github.com/kirimku/smartseller-storefront-sub001/internal/monitor"
	"github.com/kirimku/smartseller-storefront-sub001/internal/session"
	"github.com/kirimku/smartseller-storefront-sub001/internal/transport"
)

// PasswordEnvVar - переменная окружения с паролем (для автоматизации)
const PasswordEnvVar = "STOREFRONT_PASSWORD"

// Passwords carries the non-interactive password sources
type Passwords struct {
	FromFile string
	FromArgs string
}

// Cli binds the session-resilience components to the storefront commands
type Cli struct {
	apiClient   *api.Client
	store       *session.Store
	refresher   *session.Refresher
	interceptor *transport.Interceptor
	monitor     *monitor.Monitor
}

// New creates the CLI over the already-wired components
func New(apiClient *api.Client, store *session.Store, refresher *session.Refresher, interceptor *transport.Interceptor, mon *monitor.Monitor) *Cli {
	return &Cli{
		apiClient:   apiClient,
		store:       store,
		refresher:   refresher,
		interceptor: interceptor,
		monitor:     mon,
	}
}

// getPassword retrieves the password from sources in priority order:
// 1. STOREFRONT_PASSWORD environment variable
// 2. File specified via --password-file
// 3. Command-line parameter --password
// 4. Interactive prompt (fallback)
func (c *Cli) getPassword(passwords Passwords) (string, error) {
	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	if passwords.FromFile != "" {
		content, err := os.ReadFile(passwords.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		// Убираем trailing newline/whitespace
		password := strings.TrimSpace(string(content))
		if password == "" {
			return "", fmt.Errorf("password file is empty")
		}
		return password, nil
	}

	if passwords.FromArgs != "" {
		return passwords.FromArgs, nil
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

// PrintUsage выводит справку по командам
func PrintUsage() {
	fmt.Println("SmartSeller Storefront Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  storefront [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version              Show version information")
	fmt.Println("  --server URL           Server URL (default: http://localhost:8080)")
	fmt.Println("  --db PATH              Path to local session database (default: storefront-session.db)")
	fmt.Println("  --storage NAME         Storage backend: bolt or sqlite (default: bolt)")
	fmt.Println("  --password PASSWORD    Password (not recommended, use env var or file)")
	fmt.Println("  --password-file PATH   Path to file containing the password")
	fmt.Println()
	fmt.Println("Password priority (highest to lowest):")
	fmt.Println("  1. STOREFRONT_PASSWORD environment variable")
	fmt.Println("  2. --password-file (file path)")
	fmt.Println("  3. --password (command line)")
	fmt.Println("  4. Interactive prompt (fallback)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login                  Sign in and persist the session")
	fmt.Println("  logout                 Sign out and wipe the session")
	fmt.Println("  status                 Show session, interceptor and monitor status")
	fmt.Println("  refresh                Refresh the access token now")
	fmt.Println("  watch                  Run the expiration monitor in the foreground")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  storefront login")
	fmt.Println("  storefront status")
	fmt.Println("  export STOREFRONT_PASSWORD='mySecretPassword123'")
	fmt.Println("  storefront login --email customer@example.com")
	fmt.Println("  storefront --server https://shop.example.com watch")
}

// readInput читает строку из stdin
func readInput(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readPassword читает пароль без отображения на экране
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Переход на новую строку после ввода пароля
	if err != nil {
		return "", err
	}
	return string(passwordBytes), nil
}
