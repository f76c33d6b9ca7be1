package cmd

import (
	"github.com/prefixhashtree/pht-go/cli"
)

var versionCmd = cli.NewVersionCommand("phtnode")

func init() {
	RootCmd.AddCommand(versionCmd)
}
