package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/replydesk/server/internal/cli"
)

var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
