// Package config loads realitease.json5 and overlays the environment variables the
// jobs have always been driven by.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"realitease/internal/notify"
	"realitease/lib/configutil"
	"strings"
	"time"
)

const DefaultSpreadsheetName = "Realitease2025Data"

// CodespacesCredentialsPath is where inline service account JSON is materialized.
const CodespacesCredentialsPath = "/tmp/service_account.json"

type TMDbConfig struct {
	APIKey string `json:"api_key"`
	Bearer string `json:"bearer"`
}

type SeasonsConfig struct {
	Workers                int     `json:"workers"`
	BatchSize              int     `json:"batch_size"`
	FlushIntervalSeconds   float64 `json:"flush_interval_seconds"`
	PageLoadTimeoutSeconds float64 `json:"page_load_timeout_seconds"`
	ModalTimeoutSeconds    float64 `json:"modal_timeout_seconds"`
	MemberTimeoutSeconds   float64 `json:"member_timeout_seconds"`
	// Headful shows the browser windows instead of running headless.
	Headful    bool   `json:"headful"`
	ChromePath string `json:"chrome_path"`
}

type WWHLConfig struct {
	ShowID             string  `json:"show_id"`
	Seasons            int     `json:"seasons"`
	AppendChunk        int     `json:"append_chunk"`
	AppendPauseSeconds float64 `json:"append_pause_seconds"`
}

type BioConfig struct {
	BatchSize       int     `json:"batch_size"`
	FandomBatchSize int     `json:"fandom_batch_size"`
	CacheDir        string  `json:"cache_dir"`
	CacheTTLHours   float64 `json:"cache_ttl_hours"`
	// WikiTable overrides the embedded show -> fandom wiki table.
	WikiTable string `json:"wiki_table"`
}

type Config struct {
	SpreadsheetID   string `json:"spreadsheet_id"`
	SpreadsheetName string `json:"spreadsheet_name"`
	CredentialsFile string `json:"credentials_file"`

	// RequestDelaySeconds is the pause between HTTP requests to the same source.
	RequestDelaySeconds float64 `json:"request_delay_seconds"`

	Database          string `json:"database"`
	DatabaseAuthToken string `json:"database_auth_token"`
	FailedLogDir      string `json:"failed_log_dir"`

	TMDb    TMDbConfig        `json:"tmdb"`
	Seasons SeasonsConfig     `json:"seasons"`
	WWHL    WWHLConfig        `json:"wwhl"`
	Bio     BioConfig         `json:"bio"`
	Notify  notify.SmtpConfig `json:"notify"`
}

// Defaults are the values used for everything neither the config file nor the
// environment sets.
func Defaults() Config {
	return Config{
		SpreadsheetName:     DefaultSpreadsheetName,
		RequestDelaySeconds: 0.5,
		Database:            "realitease.db",
		FailedLogDir:        ".",
		Seasons: SeasonsConfig{
			Workers:                8,
			BatchSize:              50,
			FlushIntervalSeconds:   60,
			PageLoadTimeoutSeconds: 25,
			ModalTimeoutSeconds:    8,
			MemberTimeoutSeconds:   8,
		},
		WWHL: WWHLConfig{
			ShowID:             "22980",
			Seasons:            22,
			AppendChunk:        50,
			AppendPauseSeconds: 30,
		},
		Bio: BioConfig{
			BatchSize:       50,
			FandomBatchSize: 20,
			CacheDir:        ".cache/pages",
			CacheTTLHours:   24,
		},
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c Config) RequestDelay() time.Duration { return seconds(c.RequestDelaySeconds) }

func (c SeasonsConfig) FlushInterval() time.Duration   { return seconds(c.FlushIntervalSeconds) }
func (c SeasonsConfig) PageLoadTimeout() time.Duration { return seconds(c.PageLoadTimeoutSeconds) }
func (c SeasonsConfig) ModalTimeout() time.Duration    { return seconds(c.ModalTimeoutSeconds) }
func (c SeasonsConfig) MemberTimeout() time.Duration   { return seconds(c.MemberTimeoutSeconds) }

func (c WWHLConfig) AppendPause() time.Duration { return seconds(c.AppendPauseSeconds) }

func (c BioConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours * float64(time.Hour))
}

// Load reads the config file at path (plus its .local override) over the defaults,
// then applies the environment.
func Load(path string) (Config, error) {
	if path == "" {
		path = "realitease.json5"
	}
	config, err := configutil.ReadConfigOr(path, Defaults())
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	config.ApplyEnv()
	return config, nil
}

// ApplyEnv overlays environment variables, they win over the config file.
func (c *Config) ApplyEnv() {
	if v := configutil.EnvString("SPREADSHEET_ID"); v != "" {
		c.SpreadsheetID = v
	}
	if v := configutil.EnvString("SPREADSHEET_NAME"); v != "" {
		c.SpreadsheetName = v
	}
	if v := configutil.EnvString("TMDB_API_KEY"); v != "" {
		c.TMDb.APIKey = v
	}
	if v := configutil.EnvString("TMDB_BEARER"); v != "" {
		c.TMDb.Bearer = v
	}
	if v := configutil.EnvString("REALITEASE_DB"); v != "" {
		c.Database = v
	}
	if v := configutil.EnvString("REALITEASE_DB_AUTH_TOKEN"); v != "" {
		c.DatabaseAuthToken = v
	}
	delay := configutil.EnvDuration("REQUEST_DELAY", c.RequestDelay())
	c.RequestDelaySeconds = delay.Seconds()
}

// ResolveCredentials returns the path of the service account key to use.
//
// In a Codespace with GOOGLE_SERVICE_ACCOUNT_JSON holding the key itself, the key is
// written to CodespacesCredentialsPath. Otherwise GOOGLE_APPLICATION_CREDENTIALS, then
// GSPREAD_SERVICE_ACCOUNT, then credentials_file from the config are used.
func (c Config) ResolveCredentials() (string, error) {
	return resolveCredentials(c.CredentialsFile, CodespacesCredentialsPath)
}

func resolveCredentials(configured, codespacesPath string) (string, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	if configutil.EnvBool("CODESPACES") && strings.HasPrefix(inline, "{") {
		if !json.Valid([]byte(inline)) {
			return "", fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is not valid json")
		}
		if err := os.WriteFile(codespacesPath, []byte(inline), 0600); err != nil {
			return "", fmt.Errorf("write service account key: %w", err)
		}
		return codespacesPath, nil
	}

	candidates := []string{
		configutil.EnvString("GOOGLE_APPLICATION_CREDENTIALS"),
		configutil.EnvString("GSPREAD_SERVICE_ACCOUNT"),
		configured,
	}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("service account key %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf(
		"no service account credentials: set GOOGLE_APPLICATION_CREDENTIALS, " +
			"GSPREAD_SERVICE_ACCOUNT or credentials_file in realitease.json5",
	)
}
