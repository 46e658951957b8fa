// Command nodechain runs a single peer-to-peer node: a bootstrap node
// (no outbound dial, no operator API) or a full node (dials the well-
// known bootstrap address on startup and serves the operator API).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nodechain/nodechain/pkg/api"
	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/crypto"
	"github.com/nodechain/nodechain/pkg/logger"
	"github.com/nodechain/nodechain/pkg/miner"
	"github.com/nodechain/nodechain/pkg/node"
	"github.com/nodechain/nodechain/pkg/p2p"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// bootstrapAddr is the well-known rendezvous point a fresh full node
// dials on startup to discover the rest of the network.
const bootstrapAddr = "bootstrap.nodechain.local:8333"

const apiPortOffset = 1000

var port uint16

func main() {
	block.SetSignatureVerifier(crypto.Verify)

	rootCmd := &cobra.Command{
		Use:   "nodechain <role> <operation>",
		Short: "nodechain runs a single peer-to-peer ledger node",
		Long: `nodechain runs a single peer-to-peer ledger node.

role is "bootstrap" (no outbound dial, no operator API) or "full-node"
(dials the bootstrap address and serves the operator API).
operation is "new" (fresh chain and wallet) or "load" (restore the last
saved snapshot).`,
		Args: cobra.ExactArgs(2),
		RunE: runNode,
	}
	rootCmd.PersistentFlags().Uint16Var(&port, "port", 8080, "P2P listen port")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nodechain: %v\n", err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	role, operation := args[0], args[1]
	if role != "bootstrap" && role != "full-node" {
		return fmt.Errorf("unknown role %q: use \"bootstrap\" or \"full-node\"", role)
	}
	if operation != "new" && operation != "load" {
		return fmt.Errorf("unknown operation %q: use \"new\" or \"load\"", operation)
	}

	log := logger.Default().WithPrefix("nodechain")
	log.Info("starting %s node (%s)", role, operation)

	state, err := loadOrCreate(operation, log)
	if err != nil {
		return fmt.Errorf("nodechain: %w", err)
	}
	state.Config.Port = port

	minerCmd := make(chan miner.Command, 100)
	found := make(chan *block.Block, 16)

	server := p2p.NewServer(state, minerCmd)
	server.PumpMinedBlocks(found)
	if err := server.Listen(port); err != nil {
		return fmt.Errorf("nodechain: %w", err)
	}

	controller := miner.NewController(state.GetNextBlock, found, minerCmd, 0)
	controllerDone := make(chan struct{})
	go func() {
		controller.Run()
		close(controllerDone)
	}()

	save := &atomic.Bool{}
	if role == "full-node" {
		apiServer := api.NewServer(state, server.Commands(), save, port+apiPortOffset)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error("operator API stopped: %v", err)
			}
		}()

		select {
		case server.Commands() <- node.NetworkCommand{Kind: node.CommandConnect, Addr: bootstrapAddr}:
		default:
			log.Warn("network command channel full, unable to dial bootstrap")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println()
	log.Info("shutting down")

	minerCmd <- miner.Command{Kind: miner.Stop}
	<-controllerDone

	if role == "full-node" {
		save.Store(true)
	}
	if err := state.Save(); err != nil {
		log.Error("save on shutdown: %v", err)
	}
	time.Sleep(time.Second)
	log.Info("stopped")
	return nil
}

func loadOrCreate(operation string, log *logger.Logger) (*node.State, error) {
	if operation == "load" {
		return node.Load()
	}
	cfg := node.DefaultConfig()
	applyConfigOverrides(cfg, log)
	return node.New(cfg)
}

// applyConfigOverrides layers an optional config.yaml (searched in the
// working directory and ./configs) over the built-in defaults; the
// --port flag, applied afterward in runNode, still takes the final word
// on port.
func applyConfigOverrides(cfg *node.Config, log *logger.Logger) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("reading config file: %v", err)
		}
		return
	}

	if viper.IsSet("reward") {
		cfg.Reward = viper.GetUint64("reward")
	}
	if viper.IsSet("difficulty") {
		cfg.Difficulty = viper.GetUint64("difficulty")
	}
	if viper.IsSet("version") {
		cfg.Version = uint32(viper.GetUint("version"))
	}
	if viper.IsSet("local_ip") {
		cfg.LocalIP = viper.GetString("local_ip")
	}
	if viper.IsSet("global_ip") {
		cfg.GlobalIP = viper.GetString("global_ip")
	}
}
