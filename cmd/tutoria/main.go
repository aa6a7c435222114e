package main

import (
	"fmt"
	"os"

	"github.com/tutoria/dashboard/pkg/cli"
)

func main() {
	app := cli.NewApp()
	rootCmd := cli.NewRootCommand(app)

	if err := rootCmd.Execute(os.Args[1:], app.Out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
