package main

import (
	"os"
	"strings"

	"github.com/habedi/totempark/cmd"
	"github.com/rs/zerolog"
)

func main() {
	configureLogLevelFromEnv()
	cmd.Execute()
}

// configureLogLevelFromEnv enables debug logging when DEBUG_TOTEMPARK is set
// to anything but "false" or "0". Otherwise LOG_LEVEL picks the level, with
// info as the fallback.
func configureLogLevelFromEnv() {
	if debug := os.Getenv("DEBUG_TOTEMPARK"); debug != "" && debug != "false" && debug != "0" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
