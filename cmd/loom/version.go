package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loom/internal/version"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			fmt.Printf("version: %s\n", info.Version)
			if info.Commit != "" {
				fmt.Printf("commit:  %s\n", info.Commit)
			}
			return nil
		},
	}
}
