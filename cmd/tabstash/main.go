package main

import (
	"fmt"
	"os"

	"github.com/MrSnakeDoc/tabstash/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ tabstash: %v\n", err)
		os.Exit(1)
	}
}
