package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"realitease/internal/store"
	"realitease/lib/dbutil"

	"github.com/tcnksm/go-input"

	_ "modernc.org/sqlite"
)

const (
	historyPath     = ".dev/realitease.db"
	localConfigPath = "realitease.local.json5"
)

func CreateHistoryDB() error {
	_, err := os.Stat(historyPath)
	if err == nil {
		fmt.Println("run history already created at", historyPath)
		return nil
	}

	fmt.Println("creating run history at", historyPath)
	db, err := dbutil.OpenAndMigrate(historyPath, "", store.Schema)
	if err != nil {
		return err
	}
	return db.Close()
}

type localConfig struct {
	SpreadsheetID   string `json:"spreadsheet_id,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	Database        string `json:"database"`
	FailedLogDir    string `json:"failed_log_dir"`
	TMDb            struct {
		Bearer string `json:"bearer,omitempty"`
	} `json:"tmdb"`
}

// WriteLocalConfig asks for the settings that differ per developer and writes them to the
// local override of realitease.json5.
func WriteLocalConfig() error {
	_, err := os.Stat(localConfigPath)
	if !os.IsNotExist(err) {
		slog.Info("local config has already been written", "path", localConfigPath)
		return err
	}
	ui := input.DefaultUI()

	opts := &input.Options{
		Default: "",
		Mask:    false,
		Loop:    false,
	}
	spreadsheetID, err := ui.Ask("spreadsheet id (empty to open by name):", opts)
	if err != nil {
		return err
	}
	credentials, err := ui.Ask("service account key file:", &input.Options{
		Default:  "credentials.json",
		Required: true,
		Loop:     true,
		ValidateFunc: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
	})
	if err != nil {
		return err
	}
	bearer, err := ui.Ask("tmdb read access token:", &input.Options{Mask: true})
	if err != nil {
		return err
	}

	config := localConfig{
		SpreadsheetID:   spreadsheetID,
		CredentialsFile: credentials,
		Database:        historyPath,
		FailedLogDir:    ".dev/failed",
	}
	config.TMDb.Bearer = bearer
	cached, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(localConfigPath, cached, 0600)
}
