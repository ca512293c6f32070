package download

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/OEngineer/fetscraper/pkg/logger"
)

// LedgerFilename is the download history file kept in the output directory
const LedgerFilename = ".download_history.json"

type ledgerFile struct {
	Downloaded []string `json:"downloaded_videos"`
}

// Ledger records which video IDs have already been downloaded. It is
// safe for concurrent use; every Add persists the file atomically so a
// killed run never loses completed work.
type Ledger struct {
	mu   sync.Mutex
	path string
	ids  map[string]bool
	seq  []string
	log  logger.Logger
}

// OpenLedger loads the history from dir. A missing or corrupt file
// yields an empty ledger; corruption is logged, never fatal.
func OpenLedger(dir string, log logger.Logger) *Ledger {
	if log == nil {
		log = logger.GetLogger()
	}

	l := &Ledger{
		path: filepath.Join(dir, LedgerFilename),
		ids:  make(map[string]bool),
		log:  log,
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("could not read download history, starting fresh")
		}
		return l
	}

	var file ledgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.WithError(err).Warn("download history is corrupt, starting fresh")
		return l
	}

	for _, id := range file.Downloaded {
		if !l.ids[id] {
			l.ids[id] = true
			l.seq = append(l.seq, id)
		}
	}
	l.log.WithField("count", len(l.seq)).Debug("loaded download history")
	return l
}

// Has reports whether id is already recorded
func (l *Ledger) Has(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ids[id]
}

// Len returns the number of recorded IDs
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seq)
}

// Add records id and persists the ledger. Adding an already recorded
// id is a no-op.
func (l *Ledger) Add(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ids[id] {
		return nil
	}
	l.ids[id] = true
	l.seq = append(l.seq, id)
	return l.persistLocked()
}

func (l *Ledger) persistLocked() error {
	data, err := json.MarshalIndent(ledgerFile{Downloaded: l.seq}, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(l.path, data, 0o644)
}
