// Executable phtnode: a Prefix Hash Tree node backed by a generic DHT.
// See the cmd subcommand help text for usage.
package main

import (
	"github.com/prefixhashtree/pht-go/cli"
	"github.com/prefixhashtree/pht-go/cmd/phtnode/internal/cmd"
)

func main() {
	cli.ExecuteRoot(cmd.RootCmd)
}
