package configutil

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadDotenv loads the given .env files (default ".env") into the process environment,
// variables that are already set win. Missing files are ignored.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		slog.Debug("loaded dotenv", "file", f)
	}
	return nil
}

// EnvString returns the first non-empty variable among keys.
func EnvString(keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v != "" {
			return v
		}
	}
	return ""
}

// EnvDuration parses a duration variable. Plain numbers are read as seconds
// ("0.5" -> 500ms), anything else goes through cast ("750ms", "2s").
func EnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	seconds, err := cast.ToFloat64E(raw)
	if err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	d, err := cast.ToDurationE(raw)
	if err != nil {
		slog.Warn("invalid duration in environment", "key", key, "value", raw)
		return fallback
	}
	return d
}

// EnvBool reports whether a variable is set to a truthy value, any non-empty value that
// cast cannot parse (like CODESPACES=1 or a codespace name) is treated as true.
func EnvBool(key string) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return true
	}
	return b
}
