// Package store persists ledger blocks and benchmark runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/luca-patrignani/treecast/ledger"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

// BenchRun is one measured broadcast of the benchmark harness.
type BenchRun struct {
	ID           int64
	At           time.Time
	Transport    string
	Participants int
	Elements     int
	Kind         string
	Root         int
	Rounds       int
	Elapsed      time.Duration
	Verified     bool
}

func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) AppendBlock(ctx context.Context, b ledger.Block) error {
	d := b.Delivery
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(idx, timestamp, prev_hash, hash, root, participants, rank, kind, count, rounds, digest, elapsed_ns)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.Index, b.Timestamp, b.PrevHash, b.Hash,
		d.Root, d.Participants, d.Rank, d.Kind, d.Count, d.Rounds, d.Digest, d.Elapsed,
	)
	if err != nil {
		return fmt.Errorf("append block %d: %w", b.Index, err)
	}
	return nil
}

// Blocks returns every stored block ordered by index.
func (s *Store) Blocks(ctx context.Context) ([]ledger.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, timestamp, prev_hash, hash, root, participants, rank, kind, count, rounds, digest, elapsed_ns
		 FROM deliveries ORDER BY idx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []ledger.Block
	for rows.Next() {
		var b ledger.Block
		d := &b.Delivery
		if err := rows.Scan(&b.Index, &b.Timestamp, &b.PrevHash, &b.Hash,
			&d.Root, &d.Participants, &d.Rank, &d.Kind, &d.Count, &d.Rounds, &d.Digest, &d.Elapsed); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// LoadChain restores the stored chain. An empty store yields a new chain
// whose genesis block is persisted immediately.
func (s *Store) LoadChain(ctx context.Context) (*ledger.Blockchain, error) {
	blocks, err := s.Blocks(ctx)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return ledger.Restore(blocks)
	}
	bc := ledger.NewBlockchain()
	if err := s.AppendBlock(ctx, bc.Latest()); err != nil {
		return nil, err
	}
	return bc, nil
}

func (s *Store) AppendBenchRun(ctx context.Context, r BenchRun) (int64, error) {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bench_runs(at, transport, participants, elements, kind, root, rounds, elapsed_ns, verified)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), r.Transport, r.Participants, r.Elements, r.Kind, r.Root,
		r.Rounds, r.Elapsed.Nanoseconds(), r.Verified,
	)
	if err != nil {
		return 0, fmt.Errorf("append bench run: %w", err)
	}
	return res.LastInsertId()
}

// BenchRuns returns the latest runs first. A limit <= 0 returns every run.
func (s *Store) BenchRuns(ctx context.Context, limit int) ([]BenchRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, transport, participants, elements, kind, root, rounds, elapsed_ns, verified
		 FROM bench_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []BenchRun
	for rows.Next() {
		var (
			r       BenchRun
			at      string
			elapsed int64
		)
		if err := rows.Scan(&r.ID, &at, &r.Transport, &r.Participants, &r.Elements, &r.Kind, &r.Root,
			&r.Rounds, &elapsed, &r.Verified); err != nil {
			return nil, err
		}
		r.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("bench run %d: %w", r.ID, err)
		}
		r.Elapsed = time.Duration(elapsed)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
