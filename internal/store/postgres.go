package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quill/api/internal/doc"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreatePage(ctx context.Context, page Page, initial PageVersion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create page: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pages (id, wiki_id, parent_id, title, current_version, created_by, updated_by)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $6)
	`, page.ID, page.WikiID, page.ParentID, page.Title, initial.Version, page.CreatedBy); err != nil {
		return fmt.Errorf("insert page: %w", err)
	}

	if err := insertVersion(ctx, tx, initial); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create page: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPage(ctx context.Context, pageID string) (Page, error) {
	const query = `
		SELECT id, wiki_id, COALESCE(parent_id, ''), title, current_version, created_by, updated_by, created_at, updated_at
		FROM pages
		WHERE id = $1 AND deleted_at IS NULL
	`
	var page Page
	err := s.db.QueryRowContext(ctx, query, pageID).Scan(
		&page.ID, &page.WikiID, &page.ParentID, &page.Title, &page.CurrentVersion,
		&page.CreatedBy, &page.UpdatedBy, &page.CreatedAt, &page.UpdatedAt,
	)
	if err != nil {
		return Page{}, err
	}
	return page, nil
}

func (s *PostgresStore) ListPages(ctx context.Context, wikiID string) ([]Page, error) {
	const query = `
		SELECT id, wiki_id, COALESCE(parent_id, ''), title, current_version, created_by, updated_by, created_at, updated_at
		FROM pages
		WHERE wiki_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, wikiID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var page Page
		if err := rows.Scan(
			&page.ID, &page.WikiID, &page.ParentID, &page.Title, &page.CurrentVersion,
			&page.CreatedBy, &page.UpdatedBy, &page.CreatedAt, &page.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (s *PostgresStore) DeletePage(ctx context.Context, pageID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE pages SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, pageID)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete page rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, pageID string, version int64) (PageVersion, error) {
	const query = `
		SELECT page_id, version, parent_version, title, content, search_text, published_by, published_at
		FROM page_versions
		WHERE page_id = $1 AND version = $2
	`
	var v PageVersion
	err := s.db.QueryRowContext(ctx, query, pageID, version).Scan(
		&v.PageID, &v.Version, &v.ParentVersion, &v.Title, &v.Content, &v.SearchText, &v.PublishedBy, &v.PublishedAt,
	)
	if err != nil {
		return PageVersion{}, err
	}
	return v, nil
}

func (s *PostgresStore) GetCurrentVersion(ctx context.Context, pageID string) (PageVersion, error) {
	const query = `
		SELECT v.page_id, v.version, v.parent_version, v.title, v.content, v.search_text, v.published_by, v.published_at
		FROM page_versions v
		JOIN pages p ON p.id = v.page_id AND p.current_version = v.version
		WHERE v.page_id = $1 AND p.deleted_at IS NULL
	`
	var v PageVersion
	err := s.db.QueryRowContext(ctx, query, pageID).Scan(
		&v.PageID, &v.Version, &v.ParentVersion, &v.Title, &v.Content, &v.SearchText, &v.PublishedBy, &v.PublishedAt,
	)
	if err != nil {
		return PageVersion{}, err
	}
	return v, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, pageID string, limit int) ([]PageVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT page_id, version, parent_version, title, content, search_text, published_by, published_at
		FROM page_versions
		WHERE page_id = $1
		ORDER BY version DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []PageVersion
	for rows.Next() {
		var v PageVersion
		if err := rows.Scan(&v.PageID, &v.Version, &v.ParentVersion, &v.Title, &v.Content, &v.SearchText, &v.PublishedBy, &v.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// PublishVersion is the single serialization point per page. The UPDATE on
// pages is a compare-and-swap on current_version; when it affects zero rows
// another publish won the race and the whole transaction rolls back.
func (s *PostgresStore) PublishVersion(ctx context.Context, v PageVersion, anchors []AnchorUpdate, draftUserID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE pages
		SET current_version = $1, title = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $4 AND current_version = $5 AND deleted_at IS NULL
	`, v.Version, v.Title, v.PublishedBy, v.PageID, v.ParentVersion)
	if err != nil {
		return fmt.Errorf("advance page version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance page version rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pages WHERE id = $1 AND deleted_at IS NULL)`, v.PageID).Scan(&exists); err != nil {
			return fmt.Errorf("check page exists: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		return ErrVersionConflict
	}

	if err := insertVersion(ctx, tx, v); err != nil {
		return err
	}

	for _, update := range anchors {
		if err := applyAnchorUpdate(ctx, tx, v.PageID, update); err != nil {
			return err
		}
	}

	if draftUserID != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE page_id = $1 AND user_id = $2`, v.PageID, draftUserID); err != nil {
			return fmt.Errorf("delete published draft: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	return nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, v PageVersion) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO page_versions (page_id, version, parent_version, title, content, search_text, published_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.PageID, v.Version, v.ParentVersion, v.Title, v.Content, v.SearchText, v.PublishedBy)
	if err != nil {
		return fmt.Errorf("insert page version: %w", err)
	}
	return nil
}

func applyAnchorUpdate(ctx context.Context, tx *sql.Tx, pageID string, update AnchorUpdate) error {
	var err error
	if update.Range != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE anchors
			SET start_node_id = $1, start_offset = $2, end_node_id = $3, end_offset = $4, orphan_reason = ''
			WHERE id = $5 AND page_id = $6
		`, update.Range.StartNodeID, update.Range.StartOffset, update.Range.EndNodeID, update.Range.EndOffset, update.AnchorID, pageID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE anchors
			SET start_node_id = NULL, start_offset = 0, end_node_id = NULL, end_offset = 0, orphan_reason = $1
			WHERE id = $2 AND page_id = $3
		`, update.OrphanReason, update.AnchorID, pageID)
	}
	if err != nil {
		return fmt.Errorf("update anchor %s: %w", update.AnchorID, err)
	}
	return nil
}

func (s *PostgresStore) UpsertDraft(ctx context.Context, draft Draft) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (page_id, user_id, base_version, title, content, last_saved_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (page_id, user_id)
		DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, last_saved_at = NOW()
	`, draft.PageID, draft.UserID, draft.BaseVersion, draft.Title, draft.Content)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDraft(ctx context.Context, pageID, userID string) (Draft, error) {
	const query = `
		SELECT page_id, user_id, base_version, title, content, last_saved_at
		FROM drafts
		WHERE page_id = $1 AND user_id = $2
	`
	var draft Draft
	err := s.db.QueryRowContext(ctx, query, pageID, userID).Scan(
		&draft.PageID, &draft.UserID, &draft.BaseVersion, &draft.Title, &draft.Content, &draft.LastSavedAt,
	)
	if err != nil {
		return Draft{}, err
	}
	return draft, nil
}

func (s *PostgresStore) DeleteDraft(ctx context.Context, pageID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE page_id = $1 AND user_id = $2`, pageID, userID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAnchor(ctx context.Context, a Anchor) error {
	var startNode, endNode any
	var startOffset, endOffset int
	if a.Range != nil {
		startNode, endNode = a.Range.StartNodeID, a.Range.EndNodeID
		startOffset, endOffset = a.Range.StartOffset, a.Range.EndOffset
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anchors (id, page_id, created_in_version, text_snapshot, start_node_id, start_offset, end_node_id, end_offset, orphan_reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.PageID, a.CreatedInVersion, a.TextSnapshot, startNode, startOffset, endNode, endOffset, a.OrphanReason, a.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert anchor: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnchors(ctx context.Context, pageID string) ([]Anchor, error) {
	const query = `
		SELECT id, page_id, created_in_version, text_snapshot, start_node_id, start_offset, end_node_id, end_offset, orphan_reason, created_by, created_at
		FROM anchors
		WHERE page_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("list anchors: %w", err)
	}
	defer rows.Close()

	var anchors []Anchor
	for rows.Next() {
		a, err := scanAnchor(rows)
		if err != nil {
			return nil, err
		}
		anchors = append(anchors, a)
	}
	return anchors, rows.Err()
}

func scanAnchor(rows *sql.Rows) (Anchor, error) {
	var a Anchor
	var startNode, endNode sql.NullString
	var startOffset, endOffset int
	if err := rows.Scan(
		&a.ID, &a.PageID, &a.CreatedInVersion, &a.TextSnapshot,
		&startNode, &startOffset, &endNode, &endOffset,
		&a.OrphanReason, &a.CreatedBy, &a.CreatedAt,
	); err != nil {
		return Anchor{}, fmt.Errorf("scan anchor: %w", err)
	}
	if startNode.Valid && endNode.Valid {
		a.Range = &doc.Range{
			StartNodeID: startNode.String,
			StartOffset: startOffset,
			EndNodeID:   endNode.String,
			EndOffset:   endOffset,
		}
	}
	return a, nil
}

func (s *PostgresStore) InsertThread(ctx context.Context, t Thread, root Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert thread: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO threads (id, page_id, anchor_id, resolved, created_by)
		VALUES ($1, $2, $3, FALSE, $4)
	`, t.ID, t.PageID, t.AnchorID, t.CreatedBy); err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO thread_messages (id, thread_id, author, body)
		VALUES ($1, $2, $3, $4)
	`, root.ID, t.ID, root.Author, root.Body); err != nil {
		return fmt.Errorf("insert thread root message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert thread: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (Thread, error) {
	const query = `
		SELECT id, page_id, anchor_id, resolved, created_by, created_at
		FROM threads
		WHERE id = $1
	`
	var t Thread
	err := s.db.QueryRowContext(ctx, query, threadID).Scan(&t.ID, &t.PageID, &t.AnchorID, &t.Resolved, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		return Thread{}, err
	}
	return t, nil
}

func (s *PostgresStore) ListThreads(ctx context.Context, pageID string) ([]Thread, error) {
	const query = `
		SELECT id, page_id, anchor_id, resolved, created_by, created_at
		FROM threads
		WHERE page_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.PageID, &t.AnchorID, &t.Resolved, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (s *PostgresStore) SetThreadResolved(ctx context.Context, threadID string, resolved bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE threads SET resolved = $1 WHERE id = $2`, resolved, threadID)
	if err != nil {
		return fmt.Errorf("set thread resolved: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set thread resolved rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete thread: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var anchorID string
	err = tx.QueryRowContext(ctx, `SELECT anchor_id FROM threads WHERE id = $1`, threadID).Scan(&anchorID)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("lookup thread anchor: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_messages WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("delete thread messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = $1`, threadID); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM anchors WHERE id = $1`, anchorID); err != nil {
		return fmt.Errorf("delete thread anchor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete thread: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_messages (id, thread_id, author, body)
		VALUES ($1, $2, $3, $4)
	`, m.ID, m.ThreadID, m.Author, m.Body)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	const query = `
		SELECT id, thread_id, author, body, created_at
		FROM thread_messages
		WHERE thread_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Author, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
