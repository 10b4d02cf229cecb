// Package snapshot persists the full tracker state to a JSON file and
// restores it on startup. Positions are written for inspection only; on
// load the inventory is always rebuilt from the trade history, so a
// stale or hand-edited positions block can never corrupt state.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavriccccc-tech/skinfolio/internal/ledger"
	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

// backupKeep is how many timestamped backups of the snapshot file are
// retained alongside it.
const backupKeep = 10

const backupPrefix = "backup_"

// Snapshot is the on-disk state of the tracker.
type Snapshot struct {
	SavedAt      time.Time                  `json:"saved_at"`
	Trades       []model.TradeRecord        `json:"trades"`
	Positions    []model.InventoryPosition  `json:"positions"`
	Orders       []model.Order              `json:"orders"`
	PriceHistory []model.PricePoint         `json:"price_history"`
	ManualPrices map[string]decimal.Decimal `json:"manual_prices,omitempty"`
}

// Save writes the snapshot to path atomically. If a previous snapshot
// exists it is first copied to a timestamped backup in the same
// directory, and backups beyond the newest ten are pruned.
func Save(path string, snap *Snapshot) error {
	snap.SavedAt = time.Now().UTC()

	if _, err := os.Stat(path); err == nil {
		if err := backup(path, snap.SavedAt); err != nil {
			return fmt.Errorf("backup snapshot: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	return pruneBackups(path)
}

// Load reads the snapshot at path. The positions block is discarded and
// recomputed from the trades, which are the source of truth. A missing
// file yields an empty snapshot and no error.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	positions := ledger.Rebuild(snap.Trades)
	snap.Positions = snap.Positions[:0]
	for _, pos := range positions {
		snap.Positions = append(snap.Positions, pos)
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		if snap.Positions[i].Game != snap.Positions[j].Game {
			return snap.Positions[i].Game < snap.Positions[j].Game
		}
		return snap.Positions[i].Item < snap.Positions[j].Item
	})

	return &snap, nil
}

func backup(path string, at time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s%s_%s%s",
		backupPrefix,
		strippedBase(path),
		at.Format("20060102_150405"),
		filepath.Ext(path),
	)
	return os.WriteFile(filepath.Join(filepath.Dir(path), name), data, 0o644)
}

// pruneBackups deletes all but the newest backupKeep backups of path.
// Backup names embed the save timestamp, so lexical order is age order.
func pruneBackups(path string) error {
	pattern := filepath.Join(filepath.Dir(path),
		backupPrefix+strippedBase(path)+"_*"+filepath.Ext(path))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(matches) <= backupKeep {
		return nil
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-backupKeep] {
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("prune backup %s: %w", old, err)
		}
	}
	return nil
}

// strippedBase is the snapshot filename without its extension, used as
// the stem of backup filenames.
func strippedBase(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
