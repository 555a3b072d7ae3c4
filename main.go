package main

import (
	"github.com/joho/godotenv"

	"tessera/cmd"
)

func main() {
	// Best-effort: a missing .env is not an error.
	_ = godotenv.Load()
	cmd.Execute()
}
