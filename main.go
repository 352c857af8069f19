// nodeprops runs a node that publishes its properties to the network and keeps
// the properties of every reachable node.
package main

import (
	"fmt"
	"os"

	"github.com/spacemeshos/go-nodeprops/cmd"
	"github.com/spacemeshos/go-nodeprops/node"
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
