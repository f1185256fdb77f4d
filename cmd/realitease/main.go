package main

import (
	"realitease/cmd/realitease/commands"
	"realitease/lib/configutil"
	"realitease/lib/serviceutil"
)

func main() {
	if err := configutil.LoadDotenv(); err != nil {
		serviceutil.Fatal("failed to load .env", err)
	}
	commands.ExecuteContext(serviceutil.SignalContext())
}
