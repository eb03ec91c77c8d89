package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var listCommand = cli.Command{
	Name:  "list",
	Usage: "list known containers",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "format, f", Value: "table", Usage: "output format: table or json"},
	},
	Action: func(context *cli.Context) error {
		states, err := libcontainer.List(rootDir(context))
		if err != nil {
			return err
		}
		if context.String("format") == "json" {
			return json.NewEncoder(os.Stdout).Encode(states)
		}
		w := tabwriter.NewWriter(os.Stdout, 8, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPID\tSTATUS\tBUNDLE")
		for _, s := range states {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.ID, s.Pid, s.Status, s.Bundle)
		}
		return w.Flush()
	},
}
