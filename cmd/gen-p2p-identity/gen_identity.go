// gen-p2p-identity creates the libp2p identity of a node in the given data directory,
// so that its node id can be distributed before the node starts.
package main

import (
	"fmt"
	"os"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/spacemeshos/go-nodeprops/p2p"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %v <path/to/output_dir>\n", os.Args[0])
		os.Exit(1)
	}

	dir := os.Args[1]
	key, err := p2p.EnsureIdentity(dir)
	if err != nil {
		fmt.Printf("failed generating identity: %v\n", err)
		os.Exit(1)
	}
	pid, err := peer.IDFromPrivateKey(key)
	if err != nil {
		fmt.Printf("failed deriving peer id: %v\n", err)
		os.Exit(1)
	}

	identityStr, err := p2p.PrettyIdentityInfoFromDir(dir)
	if err != nil {
		fmt.Printf("failed fetching identity from file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s\n", identityStr)
	fmt.Printf("node id: %s\n", p2p.NodeID(pid))
}
