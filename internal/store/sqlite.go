package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pagecraft/internal/model"

	_ "modernc.org/sqlite"
)

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.sqlitePath())
	if err != nil {
		return nil, err
	}
	// WAL gives one writer and many readers; busy_timeout avoids "database is locked"
	// when the CLI runs concurrently.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state_meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS instances (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			type TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_instances_parent ON instances(parent_id, position);`,
		`CREATE TABLE IF NOT EXISTS style_sources (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS prebuilts (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS links (
			instance_id TEXT PRIMARY KEY,
			master_id TEXT NOT NULL,
			is_master INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_links_master ON links(master_id);`,
		`CREATE TABLE IF NOT EXISTS history (
			position INTEGER PRIMARY KEY,
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			issued_at_unixms INTEGER NOT NULL,
			seq INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_id, seq);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces the stored document with doc.
func (s Store) Save(ctx context.Context, doc *model.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	meta := map[string]string{
		"version":       strconv.Itoa(doc.Version),
		"document_id":   strings.TrimSpace(doc.ID),
		"selected_id":   doc.SelectedID,
		"isolated_id":   doc.IsolatedID,
		"editing_state": string(doc.EditingState),
	}
	if doc.History != nil {
		meta["history_index"] = strconv.Itoa(doc.History.Index)
		meta["history_capacity"] = strconv.Itoa(doc.History.Capacity)
	}
	clip := ""
	if doc.Clipboard != nil {
		raw, err := json.Marshal(struct {
			Entry *model.Instance      `json:"entry"`
			Links []model.InstanceLink `json:"links,omitempty"`
		}{doc.Clipboard, doc.ClipboardLinks})
		if err != nil {
			return err
		}
		clip = string(raw)
	}
	meta["clipboard"] = clip

	if _, err := tx.ExecContext(ctx, `DELETE FROM state_meta`); err != nil {
		return err
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state_meta(k, v) VALUES(?, ?)`, k, v); err != nil {
			return err
		}
	}

	// Replace-all: a document is small and always written as a whole.
	for _, t := range []string{"instances", "style_sources", "prebuilts", "links", "history"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return err
		}
	}

	nowMs := time.Now().UTC().UnixMilli()

	if err := insertInstances(ctx, tx, doc.Root, "", 0, nowMs); err != nil {
		return err
	}
	for i, src := range doc.StyleSources {
		raw, _ := json.Marshal(src)
		if _, err := tx.ExecContext(ctx, `INSERT INTO style_sources(id, position, name, kind, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
			src.ID, i, src.Name, string(src.Kind), string(raw), nowMs); err != nil {
			return fmt.Errorf("style source %s: %w", src.ID, err)
		}
	}
	for i, p := range doc.Prebuilts {
		raw, _ := json.Marshal(p)
		if _, err := tx.ExecContext(ctx, `INSERT INTO prebuilts(id, position, name, category, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
			p.ID, i, p.Name, p.Category, string(raw), p.UpdatedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("prebuilt %s: %w", p.ID, err)
		}
	}
	for _, l := range doc.Links {
		raw, _ := json.Marshal(l)
		if _, err := tx.ExecContext(ctx, `INSERT INTO links(instance_id, master_id, is_master, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
			l.InstanceID, l.MasterID, boolToInt(l.IsMaster), string(raw), nowMs); err != nil {
			return fmt.Errorf("link %s: %w", l.InstanceID, err)
		}
	}
	if doc.History != nil {
		for i, snap := range doc.History.Snapshots {
			raw, _ := json.Marshal(snap)
			if _, err := tx.ExecContext(ctx, `INSERT INTO history(position, json) VALUES(?, ?)`, i, string(raw)); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// insertInstances writes one row per node; the row json holds the node without children.
func insertInstances(ctx context.Context, tx *sql.Tx, in model.Instance, parentID string, pos int, nowMs int64) error {
	node := in
	node.Children = nil
	raw, err := json.Marshal(node)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO instances(id, parent_id, position, type, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
		in.ID, parentID, pos, in.Type, string(raw), nowMs); err != nil {
		return fmt.Errorf("instance %s: %w", in.ID, err)
	}
	for i, ch := range in.Children {
		if err := insertInstances(ctx, tx, ch, in.ID, i, nowMs); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the stored document. It returns ErrNoDocument when nothing was saved yet.
func (s Store) Load(ctx context.Context) (*model.Document, error) {
	if !s.Exists() {
		return nil, ErrNoDocument
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	meta := map[string]string{}
	rows, err := db.QueryContext(ctx, `SELECT k, v FROM state_meta`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, err
		}
		meta[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if meta["version"] == "" {
		return nil, ErrNoDocument
	}

	doc := &model.Document{
		ID:           meta["document_id"],
		SelectedID:   meta["selected_id"],
		IsolatedID:   meta["isolated_id"],
		EditingState: model.State(meta["editing_state"]),
	}
	if doc.Version, err = strconv.Atoi(meta["version"]); err != nil {
		return nil, fmt.Errorf("state_meta version: %w", err)
	}

	if doc.Root, err = loadTree(ctx, db); err != nil {
		return nil, err
	}
	if doc.StyleSources, err = readJSONRows[model.StyleSource](ctx, db, `SELECT json FROM style_sources ORDER BY position`); err != nil {
		return nil, err
	}
	if doc.Prebuilts, err = readJSONRows[model.Prebuilt](ctx, db, `SELECT json FROM prebuilts ORDER BY position`); err != nil {
		return nil, err
	}
	if doc.Links, err = readJSONRows[model.InstanceLink](ctx, db, `SELECT json FROM links ORDER BY instance_id`); err != nil {
		return nil, err
	}
	snaps, err := readJSONRows[model.Instance](ctx, db, `SELECT json FROM history ORDER BY position`)
	if err != nil {
		return nil, err
	}
	if len(snaps) > 0 {
		h := &model.HistoryState{Snapshots: snaps}
		h.Index, _ = strconv.Atoi(meta["history_index"])
		h.Capacity, _ = strconv.Atoi(meta["history_capacity"])
		doc.History = h
	}
	if raw := meta["clipboard"]; raw != "" {
		var clip struct {
			Entry *model.Instance      `json:"entry"`
			Links []model.InstanceLink `json:"links,omitempty"`
		}
		if err := json.Unmarshal([]byte(raw), &clip); err != nil {
			return nil, fmt.Errorf("clipboard: %w", err)
		}
		doc.Clipboard = clip.Entry
		doc.ClipboardLinks = clip.Links
	}

	if doc.StyleSources == nil {
		doc.StyleSources = []model.StyleSource{}
	}
	if doc.Prebuilts == nil {
		doc.Prebuilts = []model.Prebuilt{}
	}
	if doc.Links == nil {
		doc.Links = []model.InstanceLink{}
	}
	return doc, nil
}

func loadTree(ctx context.Context, db *sql.DB) (model.Instance, error) {
	rows, err := db.QueryContext(ctx, `SELECT parent_id, json FROM instances ORDER BY parent_id, position`)
	if err != nil {
		return model.Instance{}, err
	}
	defer rows.Close()

	byParent := map[string][]model.Instance{}
	total := 0
	for rows.Next() {
		var parent, js string
		if err := rows.Scan(&parent, &js); err != nil {
			return model.Instance{}, err
		}
		var in model.Instance
		if err := json.Unmarshal([]byte(js), &in); err != nil {
			return model.Instance{}, err
		}
		byParent[parent] = append(byParent[parent], in)
		total++
	}
	if err := rows.Err(); err != nil {
		return model.Instance{}, err
	}

	roots := byParent[""]
	if len(roots) != 1 || roots[0].ID != model.RootID {
		return model.Instance{}, fmt.Errorf("stored tree has %d roots", len(roots))
	}
	var attach func(in *model.Instance) int
	attach = func(in *model.Instance) int {
		n := 1
		kids := byParent[in.ID]
		if len(kids) > 0 {
			in.Children = kids
			for i := range in.Children {
				n += attach(&in.Children[i])
			}
		}
		return n
	}
	root := roots[0]
	if n := attach(&root); n != total {
		return model.Instance{}, fmt.Errorf("stored tree has %d unreachable instances", total-n)
	}
	return root, nil
}

func readJSONRows[T any](ctx context.Context, db *sql.DB, query string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var js string
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(js), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
