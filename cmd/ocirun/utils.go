package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// argCmp is the comparator checkArgs uses against context.NArg(), mirroring
// the teacher's spec.go checkArgs/exactArgs pairing.
type argCmp int

const (
	exactArgs argCmp = iota
	minArgs
)

func checkArgs(context *cli.Context, expected int, cmp argCmp) error {
	n := context.NArg()
	switch cmp {
	case exactArgs:
		if n != expected {
			return fmt.Errorf("%s: %q requires exactly %d argument(s)", os.Args[0], context.Command.Name, expected)
		}
	case minArgs:
		if n < expected {
			return fmt.Errorf("%s: %q requires at least %d argument(s)", os.Args[0], context.Command.Name, expected)
		}
	}
	return nil
}

// setupLogging wires --log/--log-format into logrus before any command
// runs, the same destination every libcontainer package underneath
// already logs through.
func setupLogging(context *cli.Context) error {
	switch context.GlobalString("log-format") {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{})
	default:
		return fmt.Errorf("unknown log-format %q", context.GlobalString("log-format"))
	}

	if path := context.GlobalString("log"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logrus.SetOutput(f)
	}
	return nil
}

// rootDir resolves --root for every subcommand.
func rootDir(context *cli.Context) string {
	return context.GlobalString("root")
}

// containerID returns the first positional argument: the <id> every
// subcommand but list/spec takes.
func containerID(context *cli.Context) string {
	return context.Args().First()
}
