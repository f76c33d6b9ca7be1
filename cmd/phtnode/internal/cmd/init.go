package cmd

import (
	"log"
	"path"

	"github.com/prefixhashtree/pht-go/cli"
	"github.com/prefixhashtree/pht-go/config"
	"github.com/spf13/cobra"
)

// initCmd represents the init command.
var initCmd = cli.NewInitCommand("phtnode", initRunFunc)

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("dir", "d", ".", "Location of directory for storing generated files")
}

func initRunFunc(cmd *cobra.Command, args []string) {
	dir := cmd.Flag("dir").Value.String()
	file := path.Join(dir, "config.toml")

	conf := config.New(file, "toml")
	conf.StoragePath = path.Join(dir, "phtnode-data")
	if err := conf.Save(); err != nil {
		log.Println(err)
	}
}
