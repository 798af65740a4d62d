package main

import (
	"os"

	"bb-cli/cmd"
	"bb-cli/common"
	"bb-cli/logger"
)

func main() {
	err := cmd.Execute()
	logger.Sync()
	if err != nil {
		os.Exit(common.ExitCode(err))
	}
}
