// Package cmd implements the phtnode command-line tool's subcommands.
package cmd

import (
	"github.com/prefixhashtree/pht-go/cli"
)

// RootCmd represents the base "phtnode" command when called without any
// subcommands.
var RootCmd = cli.NewRootCommand("phtnode",
	"A Prefix Hash Tree node backed by a generic DHT",
	`
 ___ _  _ ___    _  _  ___  ___  ___
| _ \ || |_  )  | \| |/ _ \|   \| __|
|  _/ __ |/ /   | .'| | (_) | |) | _|
|_| |_||_/___|  |_|\_|\___/|___/|___|
`)
