// Package app is the application layer between the CLI and the tracker
// service. It constructs dependencies from config and manages the store
// and log file lifecycle on Close.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"linktrack/internal/config"
	"linktrack/internal/database"
	"linktrack/internal/gemini"
	"linktrack/internal/linkedin"
	"linktrack/internal/tracker"
)

// App wires the store, logger, and LinkedIn clients together.
// Store-only commands (posts, stats, schedule, queue, cancel, backup)
// never touch the network, so API credentials are loaded lazily and
// only commands that publish or fetch require them.
type App struct {
	cfg     *config.Config
	store   *database.Store
	logger  *slog.Logger
	logFile *os.File

	creds *config.Credentials
	auth  *linkedin.Authenticator
}

// NewApp creates an App from the given config. operation identifies the
// CLI command being run (e.g. "Schedule", "PublishDue") and is stamped
// on every log line. The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	opID := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405Z"), operation)
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	store, err := database.Open(databasePath(cfg))
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &App{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// databasePath resolves the SQLite path from config. type=memory is for
// tests and throwaway runs.
func databasePath(cfg *config.Config) string {
	if cfg.Database.Type == "memory" {
		return ":memory:"
	}
	dir := cfg.Database.DataDir
	if dir == "" {
		dir = cfg.BaseDir
	}
	return filepath.Join(dir, "linktrack.db")
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Store returns the underlying store for commands that need direct access.
func (a *App) Store() *database.Store { return a.store }

// Logger returns the tracker-facing logger.
func (a *App) Logger() tracker.Logger {
	return &slogAdapter{l: a.logger}
}

// credentials loads API credentials from the environment, once.
func (a *App) credentials() (*config.Credentials, error) {
	if a.creds != nil {
		return a.creds, nil
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if missing := creds.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v (set them in the environment or a .env file)", tracker.ErrNotConfigured, missing)
	}
	a.creds = creds
	return creds, nil
}

// Authenticator returns the OAuth authenticator, building it on first use.
func (a *App) Authenticator() (*linkedin.Authenticator, error) {
	if a.auth != nil {
		return a.auth, nil
	}
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}
	tokens := linkedin.NewTokenStore(a.cfg.TokenPath())
	a.auth = linkedin.NewAuthenticator(a.cfg.API, creds, tokens)
	return a.auth, nil
}

// LinkedIn returns a posting client backed by the shared authenticator.
func (a *App) LinkedIn() (*linkedin.Client, error) {
	auth, err := a.Authenticator()
	if err != nil {
		return nil, err
	}
	return linkedin.NewClient(a.cfg.API, auth), nil
}

// Analytics returns an analytics client backed by the shared authenticator.
func (a *App) Analytics() (*linkedin.AnalyticsClient, error) {
	auth, err := a.Authenticator()
	if err != nil {
		return nil, err
	}
	return linkedin.NewAnalyticsClient(a.cfg.API, auth), nil
}

// LocalService returns a service for commands that only touch the store.
// Its publisher and analytics source are nil; calling a network operation
// on it is a programming error.
func (a *App) LocalService() *tracker.Service {
	return tracker.NewService(a.store, nil, nil, a.Logger(), tracker.RealClock{})
}

// NetworkService returns a fully wired service, building the LinkedIn
// clients. Fails when credentials are absent.
func (a *App) NetworkService() (*tracker.Service, error) {
	client, err := a.LinkedIn()
	if err != nil {
		return nil, err
	}
	analytics, err := a.Analytics()
	if err != nil {
		return nil, err
	}
	return tracker.NewService(a.store, client, analytics, a.Logger(), tracker.RealClock{}), nil
}

// Engine returns the scheduling engine used by publish-due and watch.
func (a *App) Engine() (*tracker.Engine, error) {
	client, err := a.LinkedIn()
	if err != nil {
		return nil, err
	}
	return tracker.NewEngine(a.store, client, a.Logger(), tracker.RealClock{}), nil
}

// Drafts returns a Gemini client for the draft command. Drafting does
// not need LinkedIn credentials, only the Gemini key.
func (a *App) Drafts() (*gemini.Client, error) {
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if creds.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	return gemini.NewClient(creds.GeminiAPIKey, creds.GeminiModel), nil
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
