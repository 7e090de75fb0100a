package main

import (
	"fmt"
	"os"

	"workspace-search/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "workspace-search: %v\n", err)
		os.Exit(1)
	}
}
