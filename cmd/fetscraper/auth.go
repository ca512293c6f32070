package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/OEngineer/fetscraper/pkg/auth"
	"github.com/OEngineer/fetscraper/pkg/ui"
)

var verifyLogin bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored credentials",
	Long: `Manage stored site credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your credentials or config files!`,
}

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store credentials securely",
	Long: `Store your username and password in the system keychain or an
encrypted file. The password is read without echoing.`,
	Example: `  # Interactive login
  fetscraper auth login

  # With the username given up front, verifying against the site
  fetscraper auth login my_nickname --verify`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAuthLogin,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	Run:   runAuthLogout,
}

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether credentials are stored",
	Run:   runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)

	authLoginCmd.Flags().BoolVar(&verifyLogin, "verify", false, "try logging in to the site before storing")
}

func runAuthLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	}

	reader := bufio.NewReader(os.Stdin)
	if username == "" {
		fmt.Print("Username or email: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read username", err.Error())
			os.Exit(1)
		}
		username = strings.TrimSpace(input)
	}
	if username == "" {
		ui.PrintError("Username is required")
		os.Exit(1)
	}

	fmt.Print("Password: ")
	password, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		os.Exit(1)
	}
	if password == "" {
		ui.PrintError("Password is required")
		os.Exit(1)
	}

	creds := &auth.Credentials{
		Username:     username,
		Password:     password,
		LastModified: time.Now(),
	}

	if verifyLogin {
		ui.PrintInfo("Verifying", "logging in with the provided credentials")
		if err := verifyCredentials(cmd, creds); err != nil {
			ui.PrintError("Verification failed", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Credentials verified")
	}

	if err := manager.Store(creds); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Credentials stored for " + username)
	if auth.IsKeyringAvailable() {
		ui.PrintInfo("Storage", "system keychain")
	} else {
		ui.PrintInfo("Storage", "encrypted file")
	}
}

func runAuthLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if err := manager.Delete(); err != nil {
		ui.PrintError("Failed to remove credentials", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Stored credentials removed")
}

func runAuthStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	creds, err := manager.Retrieve()
	if err != nil {
		ui.PrintWarning("No stored credentials")
		fmt.Println("\nStore credentials with:")
		fmt.Println("  fetscraper auth login")
		return
	}

	ui.PrintInfo("Username", creds.Username)
	ui.PrintInfo("Password", strings.Repeat("*", 8))
	if !creds.LastModified.IsZero() {
		ui.PrintInfo("Stored", creds.LastModified.Format("2006-01-02 15:04:05"))
	}
}

// verifyCredentials attempts a real login with the given credentials
func verifyCredentials(cmd *cobra.Command, creds *auth.Credentials) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Credentials.Username = creds.Username
	cfg.Credentials.Password = creds.Password

	s, err := newScraperWithConfig(cfg)
	if err != nil {
		return err
	}
	return s.Login()
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
