package engine

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// journalBatch is the number of pending entries that forces a flush.
const journalBatch = 100

// JournalEntry is one recovered inode as recorded in the journal.
type JournalEntry struct {
	Inode   uint64
	Size    uint64 // declared size
	Written int64  // final output size
	Hash    string // BLAKE3 of the output file, hex
}

// Journal is the SQLite-backed record of a recovery run. It remembers which
// inodes were written and how far the scan got, so an interrupted run can
// pick up where it stopped.
type Journal struct {
	db    *sql.DB
	path  string
	runID string

	mu      sync.Mutex
	batch   []JournalEntry
	done    chan struct{}
	stopped bool
}

// OpenJournal opens (or creates) the journal for the given device and output
// directory. The DB is stored at $XDG_RUNTIME_DIR/xfs-irecover/<job-id>.db
// or <tmp>/xfs-irecover-<job-id>.db.
func OpenJournal(device, outputDir string) (*Journal, error) {
	jobID := journalJobID(device, outputDir)
	dbPath := journalPath(jobID)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	j := &Journal{
		db:    db,
		path:  dbPath,
		runID: uuid.NewString(),
		done:  make(chan struct{}),
	}

	if err := j.init(device, outputDir); err != nil {
		db.Close()
		return nil, err
	}

	go j.flushLoop()

	return j, nil
}

func (j *Journal) init(device, outputDir string) error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS recovered (
			inode   INTEGER PRIMARY KEY,
			size    INTEGER NOT NULL,
			written INTEGER NOT NULL,
			hash    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var storedDev, storedOut string
	err = j.db.QueryRow("SELECT value FROM meta WHERE key = 'device'").Scan(&storedDev)
	switch {
	case err == nil:
		if err := j.db.QueryRow("SELECT value FROM meta WHERE key = 'output_dir'").Scan(&storedOut); err == nil {
			if storedDev != device || storedOut != outputDir {
				return fmt.Errorf("journal mismatch: stored %s->%s, got %s->%s",
					storedDev, storedOut, device, outputDir)
			}
		}
	case errors.Is(err, sql.ErrNoRows):
		_, err = j.db.Exec(
			"INSERT OR REPLACE INTO meta (key, value) VALUES ('device', ?), ('output_dir', ?), ('created', ?)",
			device, outputDir, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("store meta: %w", err)
		}
	default:
		return fmt.Errorf("read meta: %w", err)
	}

	if err := j.setMeta("run_id", j.runID); err != nil {
		return err
	}
	return nil
}

// Lookup returns the recorded entry for inum, if any. Pending entries are
// flushed first.
func (j *Journal) Lookup(inum uint64) (JournalEntry, bool) {
	if err := j.Flush(); err != nil {
		return JournalEntry{}, false
	}

	e := JournalEntry{Inode: inum}
	var size int64
	err := j.db.QueryRow(
		"SELECT size, written, hash FROM recovered WHERE inode = ?", int64(inum), //nolint:gosec // G115: inode numbers fit in int64
	).Scan(&size, &e.Written, &e.Hash)
	if err != nil {
		return JournalEntry{}, false
	}
	e.Size = uint64(size) //nolint:gosec // G115: stored from a uint64
	return e, true
}

// MarkRecovered records an extracted inode. Writes are batched and flushed
// periodically.
func (j *Journal) MarkRecovered(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.batch = append(j.batch, e)
	if len(j.batch) >= journalBatch {
		return j.flushLocked()
	}
	return nil
}

// SetCursor records the next inode the scan would read.
func (j *Journal) SetCursor(inum uint64) error {
	if err := j.Flush(); err != nil {
		return err
	}
	return j.setMeta("cursor", strconv.FormatUint(inum, 10))
}

// Cursor returns the last saved scan position.
func (j *Journal) Cursor() (uint64, bool) {
	var v string
	if err := j.db.QueryRow("SELECT value FROM meta WHERE key = 'cursor'").Scan(&v); err != nil {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RunID identifies this process's use of the journal.
func (j *Journal) RunID() string {
	return j.runID
}

func (j *Journal) setMeta(key, value string) error {
	if _, err := j.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Flush writes any pending entries to the database.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	if len(j.batch) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO recovered (inode, size, written, hash) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range j.batch {
		//nolint:gosec // G115: inode numbers and sizes fit in int64
		if _, err := stmt.Exec(int64(e.Inode), int64(e.Size), e.Written, e.Hash); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert inode %d: %w", e.Inode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	j.batch = j.batch[:0]
	return nil
}

func (j *Journal) flushLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.mu.Lock()
			_ = j.flushLocked()
			j.mu.Unlock()
		}
	}
}

// Close flushes any pending writes and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.stopped {
		j.stopped = true
		close(j.done)
	}
	_ = j.flushLocked()
	j.mu.Unlock()
	return j.db.Close()
}

// Remove deletes the journal database file.
func (j *Journal) Remove() error {
	return os.Remove(j.path)
}

// Path returns the path to the journal database file.
func (j *Journal) Path() string {
	return j.path
}

// journalJobID derives a stable ID from the device and output directory.
func journalJobID(device, outputDir string) string {
	h := blake3.New()
	h.Write([]byte(device))
	h.Write([]byte{0})
	h.Write([]byte(outputDir))
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}

func journalPath(jobID string) string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "xfs-irecover", jobID+".db")
	}
	return filepath.Join(os.TempDir(), "xfs-irecover-"+jobID+".db")
}
