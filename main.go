package main

import (
	"github.com/jamtur01/remeta/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; flags and the environment still apply.
	_ = godotenv.Load()
	cmd.Execute()
}
