// Package main is the stereo-live command.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/hyyh619/StereoVision/cli"
)

func main() {
	app := cli.NewLiveApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}
