// Package store is the local packet database. Cloud imports are merged into
// it and uploads read from it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"pktcloud/internal/logging"
	"pktcloud/internal/packet"
)

// Store manages the packet database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewStore creates or opens the packet database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS packets (
		name TEXT PRIMARY KEY,
		hex_string TEXT NOT NULL DEFAULT '',
		from_ip TEXT NOT NULL DEFAULT '',
		to_ip TEXT NOT NULL DEFAULT '',
		port INTEGER NOT NULL DEFAULT 0,
		from_port INTEGER NOT NULL DEFAULT 0,
		protocol TEXT NOT NULL DEFAULT '',
		send_response INTEGER NOT NULL DEFAULT 0,
		repeat REAL NOT NULL DEFAULT 0,
		request_path TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL DEFAULT ''
	);`)
	return err
}

// FetchAll returns every stored packet ordered by name.
func (s *Store) FetchAll(ctx context.Context) ([]packet.Packet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, hex_string, from_ip, to_ip, port, from_port, protocol,
		       send_response, repeat, request_path, timestamp
		FROM packets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query packets: %w", err)
	}
	defer rows.Close()

	var packets []packet.Packet
	for rows.Next() {
		var p packet.Packet
		if err := rows.Scan(&p.Name, &p.HexString, &p.FromIP, &p.ToIP, &p.Port, &p.FromPort,
			&p.Protocol, &p.SendResponse, &p.Repeat, &p.RequestPath, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan packet: %w", err)
		}
		packets = append(packets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read packets: %w", err)
	}
	return packets, nil
}

// Count returns the number of stored packets.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count packets: %w", err)
	}
	return n, nil
}

// Merge upserts packets by name in one transaction and returns how many were written.
func (s *Store) Merge(ctx context.Context, packets []packet.Packet) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin merge: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO packets (name, hex_string, from_ip, to_ip, port, from_port, protocol,
		                     send_response, repeat, request_path, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			hex_string = excluded.hex_string,
			from_ip = excluded.from_ip,
			to_ip = excluded.to_ip,
			port = excluded.port,
			from_port = excluded.from_port,
			protocol = excluded.protocol,
			send_response = excluded.send_response,
			repeat = excluded.repeat,
			request_path = excluded.request_path,
			timestamp = excluded.timestamp`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare merge: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, p := range packets {
		if p.Name == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, p.Name, p.HexString, p.FromIP, p.ToIP, p.Port, p.FromPort,
			p.Protocol, p.SendResponse, p.Repeat, p.RequestPath, p.Timestamp); err != nil {
			return 0, fmt.Errorf("failed to merge packet %q: %w", p.Name, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit merge: %w", err)
	}
	logging.Store("merged %d packets into %s", written, s.dbPath)
	return written, nil
}
