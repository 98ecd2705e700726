package main

import (
	"flag"
	"strings"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/params"
)

// Exit codes (§6).
const (
	exitOK             = 0
	exitCommandlineErr = 1
	exitLoggingErr     = 2
	exitParamsErr      = 3
	exitStorageErr     = 4
	exitDAGErr         = 5
)

type config struct {
	network      string
	dataDir      string
	listenAddr   string
	connectAddrs []string
	logLevel     string
	enableMiner  bool
	minerWorkers int
	poolSize     int
}

// connectAddrList accumulates repeated -connect flags, the stdlib
// flag.Value pattern the rest of this module's CLI surface never otherwise
// needs — no third-party flags library in the retrieved dependency set
// offers repeatable string flags any more directly than this.
type connectAddrList []string

func (l *connectAddrList) String() string { return strings.Join(*l, ",") }
func (l *connectAddrList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func parseConfig(args []string) (*config, error) {
	fs := flag.NewFlagSet("epicd", flag.ContinueOnError)

	cfg := &config{}
	var connect connectAddrList
	fs.StringVar(&cfg.network, "network", "mainnet", "network to join: mainnet, testnet, or simnet")
	fs.StringVar(&cfg.dataDir, "datadir", "./epicd-data", "directory holding the catalog and file store")
	fs.StringVar(&cfg.listenAddr, "listen", "", "address to accept inbound connections on, e.g. :9791")
	fs.Var(&connect, "connect", "peer address to dial on startup; may be repeated")
	fs.StringVar(&cfg.logLevel, "loglevel", "info", "trace, debug, info, warn, error, or critical")
	fs.BoolVar(&cfg.enableMiner, "miner", false, "run the miner against this node's own DAG")
	fs.IntVar(&cfg.minerWorkers, "minerworkers", 1, "number of Cuckaroo solver workers")
	fs.IntVar(&cfg.poolSize, "netpoolsize", 0, "serialize/deserialize worker pool size (0 = default)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.connectAddrs = connect
	return cfg, nil
}

// netParams resolves cfg.network to the Params value it names.
func (cfg *config) netParams() (*params.Params, error) {
	switch strings.ToLower(cfg.network) {
	case "mainnet", "":
		return &params.MainNetParams, nil
	case "testnet":
		return &params.TestNetParams, nil
	case "simnet":
		return &params.SimNetParams, nil
	default:
		return nil, errors.Errorf("unknown network %q", cfg.network)
	}
}
