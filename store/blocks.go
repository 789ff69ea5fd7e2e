package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cockroachdb/pebble"

	"github.com/openpredict/chainsync/types"
)

// InsertBlock records one synced block and advances the high-water mark if
// the block is ahead of it. Reinserting an existing height is a no-op
// overwrite, so replays are safe.
func (s *Store) InsertBlock(b types.Block) error {
	if err := s.putJSON(BlockKey(b.Number), b); err != nil {
		return err
	}

	latest, err := s.LatestHeight()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, ErrNotFound) || b.Number > latest {
		return s.putRaw(LatestHeightKey(), []byte(strconv.FormatUint(b.Number, 10)))
	}
	return nil
}

// InsertBlocks records a batch of synced blocks in one write batch
func (s *Store) InsertBlocks(blocks []types.Block) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	if len(blocks) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	highest := uint64(0)
	for _, b := range blocks {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to encode block %d: %w", b.Number, err)
		}
		if err := batch.Set(BlockKey(b.Number), data, nil); err != nil {
			return fmt.Errorf("failed to batch block %d: %w", b.Number, err)
		}
		if b.Number > highest {
			highest = b.Number
		}
	}

	latest, err := s.LatestHeight()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, ErrNotFound) || highest > latest {
		if err := batch.Set(LatestHeightKey(), []byte(strconv.FormatUint(highest, 10)), nil); err != nil {
			return fmt.Errorf("failed to batch latest height: %w", err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit block batch: %w", err)
	}
	return nil
}

// GetBlock returns the block at the given height
func (s *Store) GetBlock(height uint64) (types.Block, error) {
	var b types.Block
	if err := s.getJSON(BlockKey(height), &b); err != nil {
		return types.Block{}, err
	}
	return b, nil
}

// LatestHeight returns the sync high-water mark. ErrNotFound means no block
// has been synced yet.
func (s *Store) LatestHeight() (uint64, error) {
	raw, err := s.getRaw(LatestHeightKey())
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt latest height %q: %w", raw, err)
	}
	return height, nil
}

// PutSyncInfo persists the per-pass sync snapshot
func (s *Store) PutSyncInfo(info types.SyncInfo) error {
	return s.putJSON(SyncInfoKey(), info)
}

// GetSyncInfo returns the last published sync snapshot
func (s *Store) GetSyncInfo() (types.SyncInfo, error) {
	var info types.SyncInfo
	if err := s.getJSON(SyncInfoKey(), &info); err != nil {
		return types.SyncInfo{}, err
	}
	return info, nil
}
