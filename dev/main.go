package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"regexp"
)

var modName = regexp.MustCompile(`(?m)^module *([\w\-_]+)$`)

func create(recreate, prompt bool) error {
	mod, err := os.ReadFile("go.mod")
	if err != nil {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}
	matches := modName.FindSubmatch(mod)
	if len(matches) < 2 || string(matches[1]) != "realitease" {
		return fmt.Errorf("go.mod does not belong to realitease")
	}

	if recreate {
		err = os.RemoveAll(".dev")
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	for _, dir := range []string{".dev/resty", ".dev/failed", ".cache/pages", "debug_html"} {
		err = os.MkdirAll(dir, 0777)
		if err != nil {
			return err
		}
	}

	err = CreateHistoryDB()
	if err != nil {
		return err
	}
	if prompt {
		err = WriteLocalConfig()
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	prompt := flag.Bool("prompt", true, "ask for the spreadsheet and TMDb settings when no local config exists")
	flag.Parse()

	err := create(*recreate, *prompt)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created sucessfully!")
}
