// Package store persists documents to a single SQLite database: the
// feature graph, each feature's shape with its element map, and the
// document's interned-name table. Shape payloads are zstd-compressed JSON.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"topo/internal/config"
	"topo/internal/document"
	"topo/internal/errors"
	"topo/internal/hasher"
	"topo/internal/kernel"
	"topo/internal/logging"
)

// Store is one open database holding any number of documents.
type Store struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
	codec  *codec

	hashThreshold int
}

// Open opens or creates the database under dir (the configured store
// directory, ".topo" by default).
func Open(dir string, cfg *config.Config, logger *logging.Logger) (*Store, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(dir, "documents.db")
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open document database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	cd, err := newCodec(cfg.Store.CompressionLevel)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	s := &Store{
		conn:          conn,
		logger:        logger,
		dbPath:        dbPath,
		codec:         cd,
		hashThreshold: cfg.Naming.HashThreshold,
	}
	if !dbExists {
		logger.Info("Creating document database", map[string]interface{}{
			"path": dbPath,
		})
	}
	if err := s.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			saved_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS objects (
			doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			tag INTEGER NOT NULL,
			pos INTEGER NOT NULL,
			name TEXT NOT NULL,
			op_code TEXT NOT NULL DEFAULT '',
			op_params TEXT NOT NULL DEFAULT '{}',
			input_tags TEXT NOT NULL DEFAULT '[]',
			link_tag INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (doc_id, tag)
		);
		CREATE INDEX IF NOT EXISTS idx_objects_pos ON objects(doc_id, pos);

		CREATE TABLE IF NOT EXISTS shapes (
			doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			tag INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (doc_id, tag)
		);

		CREATE TABLE IF NOT EXISTS interned_names (
			doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			id INTEGER NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (doc_id, id)
		);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// SaveDocument writes a document and everything it owns, replacing any
// previous save under the same identity.
func (s *Store) SaveDocument(d *document.Document) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	docID := d.ID().String()
	for _, stmt := range []string{
		"DELETE FROM objects WHERE doc_id = ?",
		"DELETE FROM shapes WHERE doc_id = ?",
		"DELETE FROM interned_names WHERE doc_id = ?",
	} {
		if _, err := tx.Exec(stmt, docID); err != nil {
			return fmt.Errorf("failed to clear previous save: %w", err)
		}
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO documents (id, name, saved_at) VALUES (?, ?, ?)",
		docID, d.Name(), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to save document row: %w", err)
	}

	for pos, o := range d.Objects() {
		params, err := json.Marshal(o.Op.Params)
		if err != nil {
			return fmt.Errorf("failed to encode params of %s: %w", o.Name(), err)
		}
		inputTags := make([]int64, len(o.Inputs))
		for i, in := range o.Inputs {
			inputTags[i] = in.Tag()
		}
		inputs, _ := json.Marshal(inputTags)
		var linkTag int64
		if o.Link != nil {
			linkTag = o.Link.Tag()
		}
		if _, err := tx.Exec(
			"INSERT INTO objects (doc_id, tag, pos, name, op_code, op_params, input_tags, link_tag) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			docID, o.Tag(), pos, o.Name(), o.Op.Code, string(params), string(inputs), linkTag,
		); err != nil {
			return fmt.Errorf("failed to save object %s: %w", o.Name(), err)
		}

		sh := o.Shape()
		if sh.IsNull() {
			continue
		}
		payload, err := s.codec.encodeShape(sh)
		if err != nil {
			return fmt.Errorf("failed to encode shape of %s: %w", o.Name(), err)
		}
		if _, err := tx.Exec(
			"INSERT INTO shapes (doc_id, tag, payload) VALUES (?, ?, ?)",
			docID, o.Tag(), payload,
		); err != nil {
			return fmt.Errorf("failed to save shape of %s: %w", o.Name(), err)
		}
	}

	for id, text := range d.Hasher().Entries() {
		if _, err := tx.Exec(
			"INSERT INTO interned_names (doc_id, id, text) VALUES (?, ?, ?)",
			docID, int64(id), text,
		); err != nil {
			return fmt.Errorf("failed to save interned name: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}
	s.logger.Info("Saved document", map[string]interface{}{
		"document": d.Name(),
		"objects":  len(d.Objects()),
	})
	return nil
}

// LoadDocument restores a document by name: graph, interned names and
// persisted shapes with their element maps. Restored objects come back
// clean; objects whose shape payload is missing stay touched so the next
// recompute regenerates them.
func (s *Store) LoadDocument(name string, logger *logging.Logger) (*document.Document, error) {
	var idText string
	err := s.conn.QueryRow("SELECT id FROM documents WHERE name = ?", name).Scan(&idText)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.DocNotFound, "no saved document %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up document: %w", err)
	}
	docID, err := uuid.Parse(idText)
	if err != nil {
		return nil, errors.New(errors.StoreCorrupt, "malformed document id", err)
	}

	d := document.Restore(docID, name, logger)
	d.Restoring = true
	defer func() { d.Restoring = false }()

	if err := s.loadInternedNames(idText, d); err != nil {
		return nil, err
	}
	if err := s.loadObjects(idText, d); err != nil {
		return nil, err
	}
	if err := s.loadShapes(idText, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) loadInternedNames(docID string, d *document.Document) error {
	rows, err := s.conn.Query("SELECT id, text FROM interned_names WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("failed to load interned names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			return errors.New(errors.StoreCorrupt, "malformed interned-name row", err)
		}
		d.Hasher().Restore(hasher.ID(id), text)
	}
	return rows.Err()
}

func (s *Store) loadObjects(docID string, d *document.Document) error {
	rows, err := s.conn.Query(
		"SELECT tag, name, op_code, op_params, input_tags, link_tag FROM objects WHERE doc_id = ? ORDER BY pos",
		docID,
	)
	if err != nil {
		return fmt.Errorf("failed to load objects: %w", err)
	}
	defer rows.Close()

	type row struct {
		tag       int64
		name      string
		opCode    string
		opParams  string
		inputTags string
		linkTag   int64
	}
	var parsed []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.tag, &r.name, &r.opCode, &r.opParams, &r.inputTags, &r.linkTag); err != nil {
			return errors.New(errors.StoreCorrupt, "malformed object row", err)
		}
		parsed = append(parsed, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range parsed {
		if r.linkTag != 0 {
			target := d.ObjectByTag(r.linkTag)
			if target == nil {
				return errors.Newf(errors.StoreCorrupt, "link %q targets unknown tag %d", r.name, r.linkTag)
			}
			if _, err := d.AddLinkWithTag(r.name, r.tag, target); err != nil {
				return err
			}
			continue
		}
		var params map[string]interface{}
		if err := json.Unmarshal([]byte(r.opParams), &params); err != nil {
			return errors.New(errors.StoreCorrupt, "malformed op params", err)
		}
		var inputTags []int64
		if err := json.Unmarshal([]byte(r.inputTags), &inputTags); err != nil {
			return errors.New(errors.StoreCorrupt, "malformed input tags", err)
		}
		inputs := make([]*document.Object, len(inputTags))
		for i, t := range inputTags {
			in := d.ObjectByTag(t)
			if in == nil {
				return errors.Newf(errors.StoreCorrupt, "object %q inputs unknown tag %d", r.name, t)
			}
			inputs[i] = in
		}
		op := kernel.Operation{Code: r.opCode, Params: params}
		if _, err := d.AddObjectWithTag(r.name, r.tag, op, inputs...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadShapes(docID string, d *document.Document) error {
	rows, err := s.conn.Query("SELECT tag, payload FROM shapes WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("failed to load shapes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tag int64
		var payload []byte
		if err := rows.Scan(&tag, &payload); err != nil {
			return errors.New(errors.StoreCorrupt, "malformed shape row", err)
		}
		o := d.ObjectByTag(tag)
		if o == nil {
			continue // tag retired since the save, payload is stale
		}
		sh, err := s.codec.decodeShape(payload, d.Hasher(), s.hashThreshold)
		if err != nil {
			return errors.Newf(errors.StoreCorrupt, "shape of %q: %v", o.Name(), err)
		}
		o.SetShape(sh)
		o.PurgeTouched()
	}
	return rows.Err()
}

// ListDocuments returns all saved document names.
func (s *Store) ListDocuments() ([]string, error) {
	rows, err := s.conn.Query("SELECT name FROM documents ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DeleteDocument removes a saved document and everything it owns.
func (s *Store) DeleteDocument(name string) error {
	res, err := s.conn.Exec("DELETE FROM documents WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf(errors.DocNotFound, "no saved document %q", name)
	}
	return nil
}
