package main

import (
	"fmt"
	"os"

	"linktrack/internal/app"
	"linktrack/internal/config"
	"linktrack/internal/linkedin"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Schedule", "PublishDue").
func newApp(operation string) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config (run 'linktrack config init' first): %w", err)
	}
	return cfg, nil
}

var (
	header  = color.New(color.FgCyan, color.Bold)
	okText  = color.New(color.FgGreen)
	errText = color.New(color.FgRed)
	dimText = color.New(color.Faint)
)

var rootCmd = &cobra.Command{
	Use:   "linktrack",
	Short: "Personal LinkedIn content operations",
	Long:  "Schedule posts, publish them on time, and track per-category engagement locally.",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:           %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:            %s\n", cfg.LogDir)
		fmt.Printf("Database:           %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Watch Interval:     %s\n", cfg.Scheduler.Interval)
		fmt.Printf("Default Visibility: %s\n", cfg.Posting.DefaultVisibility)
		fmt.Printf("API Version:        %s\n", cfg.API.Version)
		return nil
	},
}

// auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with LinkedIn via OAuth",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Auth")
		if err != nil {
			return err
		}
		defer a.Close()

		auth, err := a.Authenticator()
		if err != nil {
			return err
		}

		token, err := auth.Authorize(cmd.Context(), func(authURL string) {
			fmt.Println("Open this URL in your browser to authorize:")
			fmt.Println()
			fmt.Println("  " + authURL)
			fmt.Println()
			fmt.Println("Waiting for the callback...")
		})
		if err != nil {
			return fmt.Errorf("authorization failed: %w", err)
		}

		okText.Printf("Authenticated as %s\n", token.UserName)
		fmt.Printf("Person URN: %s\n", token.PersonURN)
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show auth and database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := a.Config()
		fmt.Printf("Database: %s\n", a.Store().Path())

		tokens := linkedin.NewTokenStore(cfg.TokenPath())
		token, err := tokens.Load()
		switch {
		case err != nil:
			errText.Printf("Auth:     error reading tokens: %v\n", err)
		case token == nil:
			fmt.Println("Auth:     not authenticated (run 'linktrack auth')")
		case !token.Valid():
			fmt.Printf("Auth:     %s (token expired, will refresh on next use)\n", token.UserName)
		default:
			okText.Printf("Auth:     %s (token valid until %s)\n",
				token.UserName, token.Expiry.Local().Format("2006-01-02 15:04"))
		}

		posts, err := a.Store().ListPosts(0)
		if err != nil {
			return err
		}
		pending, err := a.Store().ListScheduled(false)
		if err != nil {
			return err
		}
		fmt.Printf("Tracked posts:    %d\n", len(posts))
		fmt.Printf("Pending schedule: %d\n", len(pending))
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Snapshot the tracking database to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().BackupTo(args[0]); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Database backed up to %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backupCmd)
}
