package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/croceverde/trasporti-desk/internal/app"
	"github.com/croceverde/trasporti-desk/internal/bootstrap"
	"github.com/croceverde/trasporti-desk/internal/config"
	"github.com/croceverde/trasporti-desk/internal/coordinator"
	"github.com/croceverde/trasporti-desk/internal/credstore"
	"github.com/croceverde/trasporti-desk/internal/ipc"
)

// Version information (set via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	configFile string
	logLevel   string
	logFormat  string
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitConfig  = 3
)

var rootCmd = &cobra.Command{
	Use:   "trasporti-desk",
	Short: "Gestione servizi di trasporto sociale",
	Long: `Desktop companion for the social transport services of the association.

The app reads and writes transport records on the SharePoint site of the
association and signs users in with their Microsoft 365 account.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the desk application",
	Long: `Start the desk application services:

  - a loopback HTTP server receiving the Microsoft 365 login redirect
  - a Unix socket relay for events from helper processes
  - the login coordinator and the SharePoint data layer

Without a configured tenant and client the app runs in demo mode with
sample records.`,
	RunE: runRun,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Microsoft 365 from the terminal",
	Long: `Run the interactive login from the terminal.

The authorization URL opens in the system browser. The flow normally
completes through the loopback redirect; if the browser cannot reach it,
paste the code from the address bar at the prompt.`,
	RunE: runLogin,
}

var notifyCmd = &cobra.Command{
	Use:   "notify <topic>",
	Short: "Relay an event to a running desk application",
	Long: `Send an event to the running application over its Unix socket.

Helper processes that intercepted the login redirect use this to hand
the authorization code over, e.g.:

  trasporti-desk notify oauth-code-received --code <code> --state <state>`,
	Args: cobra.ExactArgs(1),
	RunE: runNotify,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run:   runVersion,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration file",
	RunE:  runCheckConfig,
}

// overrideExitCode is set by subcommands so main() can call os.Exit()
// after cobra finishes, letting deferred functions run. -1 means default.
var overrideExitCode = -1

// notify flags
var (
	notifyCode    string
	notifyState   string
	notifyMessage string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", defaultConfigPath(),
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error) - overrides config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (json, text) - overrides config file")

	notifyCmd.Flags().StringVar(&notifyCode, "code", "", "Authorization code")
	notifyCmd.Flags().StringVar(&notifyState, "state", "", "State parameter")
	notifyCmd.Flags().StringVar(&notifyMessage, "message", "", "Free-form message")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}

	if overrideExitCode >= 0 {
		os.Exit(overrideExitCode)
	}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/trasporti-desk/config.yaml"
	}
	return "config.yaml"
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	config.SetupLogging(&cfg.Log)

	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("starting trasporti desk",
		"version", version,
		"commit", commit,
		"config", configFile,
	)

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to assemble application: %w", err)
	}

	return a.Run()
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to assemble application: %w", err)
	}

	// Stored credential wins, as on any protected surface load.
	if a.Guard().OnProtectedLoad().Action == bootstrap.ActionProceed {
		fmt.Println("Sei già connesso a Microsoft 365.")
		return nil
	}

	if err := a.Start(); err != nil {
		return err
	}
	defer func() {
		if err := a.Stop(); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}()

	login, err := a.Coordinator().Begin(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("Il browser si sta aprendo per l'accesso Microsoft 365.")
	fmt.Println("Se non succede nulla, apri questo indirizzo:")
	fmt.Println()
	fmt.Println("  " + login.AuthURL())
	fmt.Println()
	fmt.Println("In alternativa incolla qui il codice, o l'intero indirizzo di ritorno,")
	fmt.Println("dalla barra degli indirizzi e premi Invio.")

	// Manual fallback: a pasted code or redirect URL completes the flow.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			if err := completePastedInput(cmd.Context(), a.Guard(), a.Coordinator(), input); err != nil {
				fmt.Fprintf(os.Stderr, "Codice rifiutato: %v\n", err)
			}
			return
		}
	}()

	select {
	case out := <-login.Outcome():
		switch out.State {
		case coordinator.StateAuthenticated:
			fmt.Println("Accesso completato.")
			return nil
		case coordinator.StateCancelled:
			return fmt.Errorf("accesso annullato: %w", out.Err)
		case coordinator.StateTimedOut:
			return fmt.Errorf("accesso scaduto: %w", out.Err)
		default:
			return fmt.Errorf("accesso non riuscito: %w", out.Err)
		}
	case err := <-a.Err():
		if err != nil {
			return fmt.Errorf("loopback server failed: %w", err)
		}
		return fmt.Errorf("loopback server stopped unexpectedly")
	}
}

// loginCompleter is the slice of the coordinator the pasted-input handler
// uses to finish the flow.
type loginCompleter interface {
	HandleCallback(ctx context.Context, state, code, errParam string) error
	SubmitManualCode(ctx context.Context, code string) (*credstore.Credential, error)
}

// completePastedInput feeds manual terminal input back into the login flow.
// A full redirect URL goes through the guard, which extracts the code or
// the provider error from the query or the fragment; anything else is
// treated as a bare authorization code.
func completePastedInput(ctx context.Context, guard *bootstrap.Guard, coord loginCompleter, input string) error {
	if !strings.Contains(input, "://") {
		_, err := coord.SubmitManualCode(ctx, input)
		return err
	}

	dec, err := guard.OnLoginLoad(input)
	if err != nil {
		return err
	}

	switch dec.Action {
	case bootstrap.ActionCompleteLogin:
		if dec.State != "" {
			return coord.HandleCallback(ctx, dec.State, dec.Code, "")
		}
		_, err := coord.SubmitManualCode(ctx, dec.Code)
		return err
	case bootstrap.ActionShowError:
		return fmt.Errorf("accesso rifiutato dal provider: %s", dec.ErrMsg)
	case bootstrap.ActionRedirectHome:
		// Already signed in, the outcome arrives through the poll channel.
		return nil
	default:
		return fmt.Errorf("nessun codice di autorizzazione nell'indirizzo incollato")
	}
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := ipc.NewClient(cfg.Listen.Socket)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	return client.SendEvent(ctx, &ipc.EventMessage{
		Topic:   args[0],
		Code:    notifyCode,
		State:   notifyState,
		Message: notifyMessage,
	})
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("trasporti-desk version %s\n", version)
	fmt.Printf("  Commit:     %s\n", commit)
	fmt.Printf("  Build date: %s\n", buildDate)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	fmt.Printf("Checking configuration: %s\n\n", configFile)

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n   %v\n", err)
		overrideExitCode = ExitConfig
		return nil
	}

	red := cfg.Redact()
	fmt.Println("Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  Site URL:       %s\n", red.SharePoint.SiteURL)
	fmt.Printf("  Tenant ID:      %s\n", red.SharePoint.TenantID)
	fmt.Printf("  Client ID:      %s\n", red.SharePoint.ClientID)
	fmt.Printf("  Redirect URI:   %s\n", red.SharePoint.RedirectURI)
	fmt.Printf("  Scopes:         %v\n", red.SharePoint.Scopes)
	fmt.Printf("  HTTP Listen:    %s\n", red.Listen.HTTP)
	fmt.Printf("  Unix Socket:    %s\n", red.Listen.Socket)
	fmt.Printf("  Store Backend:  %s\n", red.Store.Backend)
	fmt.Printf("  Poll Interval:  %ds x %d attempts\n", red.Auth.PollInterval, red.Auth.PollMaxAttempts)
	fmt.Printf("  Log Level:      %s\n", red.Log.Level)
	fmt.Printf("  Log Format:     %s\n", red.Log.Format)

	if cfg.SharePoint.ClientSecret != "" {
		fmt.Println("\n  Client Secret:  [SET]")
	} else {
		fmt.Println("\n  Client Secret:  [NOT SET] (public client with PKCE)")
	}

	if cfg.SharePoint.TenantID == "" || cfg.SharePoint.ClientID == "" {
		fmt.Println("\nTenant or client ID missing: the app will run in demo mode.")
	}

	return nil
}
