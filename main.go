package main

import (
	"os"

	"github.com/chessticulate/chessticulate-api/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
