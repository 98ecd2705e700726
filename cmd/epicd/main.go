// Command epicd runs an EPIC full node: it maintains the block-DAG and
// milestone ledger, relays transactions and blocks to its peers, and
// optionally mines against its own chain tip.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/epic-project/epicd/blockdag"
	"github.com/epic-project/epicd/catalog"
	"github.com/epic-project/epicd/filestore"
	"github.com/epic-project/epicd/logs"
	"github.com/epic-project/epicd/mempool"
	"github.com/epic-project/epicd/mining"
	"github.com/epic-project/epicd/netadapter"
	"github.com/epic-project/epicd/protocol"
)

// epochCapacity (files per epoch directory) and fileCapacity (payload bytes
// per file) bound the BLK/VTX file store; they are fixed, not set per run.
const (
	epochCapacity = 1 << 16
	fileCapacity  = 1 << 24
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCommandlineErr
	}

	lvl, ok := logs.LevelFromString(logLevelCode(cfg.logLevel))
	if !ok {
		fmt.Fprintf(os.Stderr, "epicd: unrecognized log level %q\n", cfg.logLevel)
		return exitLoggingErr
	}
	log.SetLevel(lvl)

	p, err := cfg.netParams()
	if err != nil {
		log.Errorf("params: %s", err)
		return exitParamsErr
	}

	cat, store, err := openStorage(cfg.dataDir)
	if err != nil {
		log.Errorf("storage: %s", err)
		return exitStorageErr
	}
	defer cat.Close()
	defer store.Close()

	dag, err := blockdag.NewDAG(p, p.GenesisBlock())
	if err != nil {
		log.Errorf("dag: %s", err)
		return exitDAGErr
	}

	pool := mempool.New()
	miner := mining.New(p, dag, pool, cfg.minerWorkers)

	netAdapter, err := netadapter.NewNetAdapter(p, cfg.poolSize)
	if err != nil {
		log.Errorf("netadapter: %s", err)
		return exitDAGErr
	}
	manager := protocol.NewManager(p, netAdapter, dag, pool)

	backup := newStorageBackup(dag, store, cat)
	spawn("storage-backup", backup.run)

	dag.OnConfirm(func(result *blockdag.LevelSetResult) {
		pruneMempool(pool, dag, result)
		backup.enqueue(result)
	})
	dag.OnChainHead(miner.HandleChainHead)

	if cfg.listenAddr != "" {
		if err := manager.Start(cfg.listenAddr); err != nil {
			log.Errorf("listen: %s", err)
			return exitDAGErr
		}
	}
	for _, addr := range cfg.connectAddrs {
		if err := manager.Connect(addr); err != nil {
			log.Warnf("connect to %s failed: %s", addr, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.enableMiner {
		spawn("miner", func() { miner.Run(ctx) })
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Infof("shutting down")
	cancel()
	if err := manager.Stop(); err != nil {
		log.Warnf("manager stop: %s", err)
	}
	if err := persistInfo(cat, store, dag, miner); err != nil {
		log.Errorf("persisting info keys: %s", err)
	}
	return exitOK
}

// logLevelCode maps the CLI's friendly -loglevel spelling to the three-letter
// codes logs.LevelFromString matches.
func logLevelCode(name string) string {
	codes := map[string]string{
		"trace": "TRC", "debug": "DBG", "info": "INF",
		"warn": "WRN", "error": "ERR", "critical": "CRT", "off": "OFF",
	}
	return codes[name]
}

func openStorage(dataDir string) (*catalog.Catalog, *filestore.Store, error) {
	cat, err := catalog.Open(filepath.Join(dataDir, "catalog"))
	if err != nil {
		return nil, nil, err
	}

	lastCommitted := map[filestore.Kind]filestore.FilePos{
		filestore.KindBlock:  readFilePos(cat, "blkE", "blkN", "blkS"),
		filestore.KindVertex: readFilePos(cat, "vtxE", "vtxN", "vtxS"),
	}

	store, err := filestore.New(filepath.Join(dataDir, "blocks"), epochCapacity, fileCapacity, lastCommitted)
	if err != nil {
		cat.Close()
		return nil, nil, err
	}
	return cat, store, nil
}

func readFilePos(cat *catalog.Catalog, epochKey, nameKey, offsetKey string) filestore.FilePos {
	return filestore.FilePos{
		Epoch:  readU32Info(cat, epochKey),
		Name:   readU32Info(cat, nameKey),
		Offset: readU32Info(cat, offsetKey),
	}
}

func readU32Info(cat *catalog.Catalog, key string) uint32 {
	b, err := cat.GetInfo(key)
	if err != nil || len(b) != 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func persistInfo(cat *catalog.Catalog, store *filestore.Store, dag *blockdag.DAG, miner *mining.Miner) error {
	putCursor := func(kind filestore.Kind, epochKey, nameKey, offsetKey string) error {
		pos := store.WriteCursor(kind)
		if err := putU32Info(cat, epochKey, pos.Epoch); err != nil {
			return err
		}
		if err := putU32Info(cat, nameKey, pos.Name); err != nil {
			return err
		}
		return putU32Info(cat, offsetKey, pos.Offset)
	}
	if err := putCursor(filestore.KindBlock, "blkE", "blkN", "blkS"); err != nil {
		return err
	}
	if err := putCursor(filestore.KindVertex, "vtxE", "vtxN", "vtxS"); err != nil {
		return err
	}

	headHeight := make([]byte, 8)
	binary.LittleEndian.PutUint64(headHeight, dag.HeadHeight())
	if err := cat.PutInfo("headHeight", headHeight); err != nil {
		return err
	}

	chainwork := dag.Chainwork()
	if chainwork == nil {
		chainwork = new(big.Int)
	}
	if err := cat.PutInfo("chainwork", chainwork.Bytes()); err != nil {
		return err
	}

	minerHead := miner.SelfChainHead()
	return cat.PutInfo("minerHead", minerHead[:])
}

func putU32Info(cat *catalog.Catalog, key string, v uint32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return cat.PutInfo(key, b)
}

func pruneMempool(pool *mempool.Pool, dag *blockdag.DAG, result *blockdag.LevelSetResult) {
	for _, hash := range result.Order {
		block, ok := dag.Block(hash)
		if !ok {
			continue
		}
		pool.RemoveConfirmed(block.Transactions)
	}
}
