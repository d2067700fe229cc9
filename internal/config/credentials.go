package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Credentials holds secrets pulled from the environment. These are kept
// out of the TOML config so the config file can be committed or shared.
type Credentials struct {
	ClientID     string `env:"LINKEDIN_CLIENT_ID"`
	ClientSecret string `env:"LINKEDIN_CLIENT_SECRET"`
	RedirectURI  string `env:"LINKEDIN_REDIRECT_URI" env-default:"http://localhost:8000/callback"`
	Scopes       string `env:"LINKEDIN_SCOPES" env-default:"openid,profile,email,w_member_social,r_member_social"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`
}

// LoadCredentials reads credentials from the environment, loading a
// .env file first if one exists in the working directory.
func LoadCredentials() (*Credentials, error) {
	// .env is optional; real environments set the variables directly.
	_ = godotenv.Load()

	var c Credentials
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("reading credentials from environment: %w", err)
	}
	return &c, nil
}

// Missing returns the names of required LinkedIn variables that are not
// set. An empty result means the LinkedIn API is usable.
func (c *Credentials) Missing() []string {
	var missing []string
	if c.ClientID == "" || c.ClientID == "your_client_id_here" {
		missing = append(missing, "LINKEDIN_CLIENT_ID")
	}
	if c.ClientSecret == "" || c.ClientSecret == "your_client_secret_here" {
		missing = append(missing, "LINKEDIN_CLIENT_SECRET")
	}
	return missing
}

// ScopeList splits the comma-separated scope string.
func (c *Credentials) ScopeList() []string {
	parts := strings.Split(c.Scopes, ",")
	scopes := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
