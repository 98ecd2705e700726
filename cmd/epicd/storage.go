package main

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/blockdag"
	"github.com/epic-project/epicd/catalog"
	"github.com/epic-project/epicd/filestore"
)

// backupQueueCapacity bounds how many confirmed level sets may be queued
// for the storage backup thread before OnConfirm blocks the DAG verify
// thread (§5: "storage backup thread (1, periodic)"). Confirmations are
// milestone-paced, not per-block, so this rarely fills.
const backupQueueCapacity = 64

// storageBackup is the single background thread that append-only mirrors
// every confirmed level set into the BLK/VTX file store and records its
// offsets in the catalog (§4.1, §4.2). Grounded on the teacher's
// blockdag.BlockDAG flushing its UTXO cache to the database on a dedicated
// goroutine rather than on the validation thread itself.
type storageBackup struct {
	dag     *blockdag.DAG
	store   *filestore.Store
	catalog *catalog.Catalog
	jobs    chan *blockdag.LevelSetResult
}

func newStorageBackup(dag *blockdag.DAG, store *filestore.Store, cat *catalog.Catalog) *storageBackup {
	return &storageBackup{
		dag:     dag,
		store:   store,
		catalog: cat,
		jobs:    make(chan *blockdag.LevelSetResult, backupQueueCapacity),
	}
}

// enqueue hands result to the backup thread. It blocks if the queue is
// full rather than drop a confirmation, since a dropped confirmation would
// leave the on-disk ledger permanently behind the in-memory one.
func (b *storageBackup) enqueue(result *blockdag.LevelSetResult) {
	b.jobs <- result
}

func (b *storageBackup) run() {
	for result := range b.jobs {
		if err := b.persist(result); err != nil {
			log.Errorf("storage backup: failed to persist level set at height %d: %s",
				result.Milestone.Height, err)
		}
	}
}

func (b *storageBackup) persist(result *blockdag.LevelSetResult) error {
	blocks := make([][]byte, len(result.Order))
	vertices := make([][]byte, len(result.Order))

	for i, hash := range result.Order {
		block, ok := b.dag.Block(hash)
		if !ok {
			return errors.Errorf("storage backup: block %s missing from the arena", hash)
		}
		vertex, ok := b.dag.Vertex(hash)
		if !ok {
			return errors.Errorf("storage backup: vertex %s missing from the arena", hash)
		}

		var buf bytes.Buffer
		if err := block.KaspaEncode(&buf); err != nil {
			return errors.Wrapf(err, "encoding block %s", hash)
		}
		blocks[i] = buf.Bytes()
		vertices[i] = blockdag.EncodeVertex(vertex)
	}

	blkPos, vtxPos, blkPositions, vtxPositions, err := b.store.AppendLevelSet(result.Milestone.Height, blocks, vertices)
	if err != nil {
		return errors.Wrap(err, "appending level set to the file store")
	}

	batch := b.catalog.NewBatch()
	for i, hash := range result.Order {
		if i == 0 {
			// The milestone itself (§4.7's "milestone first" ordering).
			batch.PutMsEntry(result.Milestone.Height, catalog.MsEntry{
				MilestoneHash: hash,
				BlkPos:        blkPos,
				VtxPos:        vtxPos,
			})
			batch.PutDefaultEntry(hash, catalog.DefaultEntry{Height: result.Milestone.Height})
			continue
		}
		batch.PutDefaultEntry(hash, catalog.DefaultEntry{
			Height:    result.Milestone.Height,
			BlkOffset: blkPositions[i].Offset - blkPos.Offset,
			VtxOffset: vtxPositions[i].Offset - vtxPos.Offset,
		})
	}
	return batch.Commit()
}
