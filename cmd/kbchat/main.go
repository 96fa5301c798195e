package main

import (
	"github.com/joho/godotenv"

	"kbchat/internal/cli"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
