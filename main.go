// leafsync keeps a set of signed records in sync between peers.
package main

import (
	"fmt"
	"os"

	"github.com/attestate/leafsync/cmd"
	"github.com/attestate/leafsync/node"
)

var (
	version string
	commit  string
	branch  string
)

func main() { // run the app
	cmd.Version = version
	cmd.Commit = commit
	cmd.Branch = branch
	if err := node.GetCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
