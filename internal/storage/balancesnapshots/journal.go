// Package balancesnapshots journals every applied account balance in a WAL so
// the web stream can replay it.
package balancesnapshots

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

const (
	defaultJournalDir = "./wal/balance"
	segmentThreshold  = 1000
	maxSegments       = 100
	keyPrefix         = "balance_"
)

var errNotInitialized = errors.New("balance journal is not initialized")

// Journal is a WAL of balance snapshots keyed by account.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// Open creates or reopens the journal under dir.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "balance_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init balance journal")
	}

	return &Journal{wal: wal}, nil
}

// Append writes snapshot at the next index.
func (j *Journal) Append(snapshot domain.BalanceSnapshot) error {
	if j == nil || j.wal == nil {
		return errNotInitialized
	}
	if snapshot.Account == "" {
		return fmt.Errorf("balance snapshot account is required")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal balance snapshot")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Write(j.wal.CurrentIndex()+1, keyPrefix+snapshot.Account, payload)
}

// After returns snapshots written after index. An empty account matches all.
func (j *Journal) After(index uint64, account string) ([]domain.BalanceSnapshotRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errNotInitialized
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	var records []domain.BalanceSnapshotRecord
	for idx := index + 1; idx <= current; idx++ {
		snapshot, ok, err := j.getLocked(idx, account)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, domain.BalanceSnapshotRecord{Index: idx, Snapshot: snapshot})
		}
	}
	return records, nil
}

// Latest returns the newest snapshot of account, scanning back from the head.
func (j *Journal) Latest(account string) (*domain.BalanceSnapshotRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errNotInitialized
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	for idx := j.wal.CurrentIndex(); idx > 0; idx-- {
		snapshot, ok, err := j.getLocked(idx, account)
		if err != nil {
			return nil, err
		}
		if ok {
			return &domain.BalanceSnapshotRecord{Index: idx, Snapshot: snapshot}, nil
		}
	}
	return nil, nil
}

// getLocked decodes the entry at idx if it belongs to account. Indexes pruned
// with old segments read as missing.
func (j *Journal) getLocked(idx uint64, account string) (domain.BalanceSnapshot, bool, error) {
	key, payload, err := j.wal.Get(idx)
	if err != nil {
		return domain.BalanceSnapshot{}, false, errors.Wrapf(err, "read balance snapshot %d", idx)
	}
	if key == "" || !strings.HasPrefix(key, keyPrefix) {
		return domain.BalanceSnapshot{}, false, nil
	}
	if account != "" && strings.TrimPrefix(key, keyPrefix) != account {
		return domain.BalanceSnapshot{}, false, nil
	}

	var snapshot domain.BalanceSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.BalanceSnapshot{}, false, errors.Wrapf(err, "decode balance snapshot %d", idx)
	}
	return snapshot, true, nil
}

// CurrentIndex returns the latest index written.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errNotInitialized
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
