package configutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Workbook  string `json:"workbook"`
	BatchSize int    `json:"batch_size"`
	Debug     bool   `json:"debug"`
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "realitease.json5"), []byte(`{
		// comments are allowed
		workbook: "Realitease2025Data",
		batch_size: 50,
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "realitease.local.json5"), []byte(`{batch_size: 10}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "realitease.json5"))
	require.NoError(t, err)
	require.Equal(t, "Realitease2025Data", cfg.Workbook)
	require.Equal(t, 10, cfg.BatchSize)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := ReadConfigOr(filepath.Join(t.TempDir(), "missing.json5"), testConfig{BatchSize: 50})
	require.NoError(t, err)
	require.Equal(t, 50, cfg.BatchSize)
}

func TestReadConfigOrFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "c.json5"), []byte(`{debug: true}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfigOr(filepath.Join(dir, "c.json5"), testConfig{Workbook: "wb", BatchSize: 50})
	require.NoError(t, err)
	require.Equal(t, testConfig{Workbook: "wb", BatchSize: 50, Debug: true}, cfg)
}

func TestEnvDuration(t *testing.T) {
	testCases := []struct {
		raw    string
		expect time.Duration
	}{
		{raw: "", expect: time.Second},
		{raw: "0.5", expect: 500 * time.Millisecond},
		{raw: "2", expect: 2 * time.Second},
		{raw: "750ms", expect: 750 * time.Millisecond},
		{raw: "garbage", expect: time.Second},
	}
	for _, test := range testCases {
		t.Setenv("REQUEST_DELAY", test.raw)
		require.Equal(t, test.expect, EnvDuration("REQUEST_DELAY", time.Second), test.raw)
	}
}

func TestEnvString(t *testing.T) {
	t.Setenv("GSPREAD_SERVICE_ACCOUNT", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/keys/sa.json")
	require.Equal(t, "/keys/sa.json", EnvString("GSPREAD_SERVICE_ACCOUNT", "GOOGLE_APPLICATION_CREDENTIALS"))
}

func TestEnvBool(t *testing.T) {
	t.Setenv("CODESPACES", "true")
	require.True(t, EnvBool("CODESPACES"))
	t.Setenv("CODESPACES", "my-codespace")
	require.True(t, EnvBool("CODESPACES"))
	t.Setenv("CODESPACES", "false")
	require.False(t, EnvBool("CODESPACES"))
	t.Setenv("CODESPACES", "")
	require.False(t, EnvBool("CODESPACES"))
}

func TestLoadDotenvMissing(t *testing.T) {
	require.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REALITEASE_TEST_KEY=from-dotenv\n"), 0600))
	t.Setenv("REALITEASE_TEST_KEY", "")
	os.Unsetenv("REALITEASE_TEST_KEY")
	require.NoError(t, LoadDotenv(path))
	require.Equal(t, "from-dotenv", os.Getenv("REALITEASE_TEST_KEY"))
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "realitease.local.json5", LocalPath("realitease.json5"))
	require.Equal(t, filepath.Join("conf", "telemetry.local.json5"), LocalPath(filepath.Join("conf", "telemetry.json5")))
	require.Equal(t, "config.local", LocalPath("config"))
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "telemetry.json5"), []byte(`{workbook: "found"}`), 0600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := ReadRecursively[testConfig]("telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, "found", cfg.Workbook)

	_, err = ReadRecursively[testConfig]("nothing-named-like-this.json5")
	require.ErrorIs(t, err, os.ErrNotExist)
}
