package main

import (
	"os"

	"github.com/ariel-frischer/symlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
