package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "dmctl",
		Usage:   "Inspect and operate direct-message conversations",
		Version: version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "Act as the actor owning access `TOKEN`",
				EnvVars: []string{"DM_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			keyCommand(),
			contactsCommand(),
			listCommand(),
			threadCommand(),
			sendCommand(),
			eraseCommand(),
			watchCommand(),
		},
	}
}
