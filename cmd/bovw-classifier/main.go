package main

import (
	"fmt"
	"os"

	"github.com/gonuts/commander"
)

func newRootCommand() *commander.Command {
	return &commander.Command{
		UsageLine: "bovw-classifier",
		Short:     "texture, pattern and bag-of-visual-words image classification",
		Subcommands: []*commander.Command{
			runCommand(),
			featuresCommand(),
			cacheCommand(),
		},
	}
}

func main() {
	if err := newRootCommand().Dispatch(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "**err**: %v\n", err)
		os.Exit(1)
	}
}
