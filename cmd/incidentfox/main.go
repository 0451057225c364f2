package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/incidentfox/incidentfox/cmd/incidentfox/commands"
)

func main() {
	// A missing .env is fine; the environment and config file still apply
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
