package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS is the Postgres full-text fallback used when Meilisearch is down or
// not configured. It queries the authoritative tables directly, so it needs
// no indexing hooks.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always reports true; the store's own ping covers connectivity.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a ranked full-text query over current page versions and
// comment threads.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	var subQueries []string
	var args []interface{}
	args = append(args, q.Text)

	wikiArg := 0
	if q.FilterWikiID != "" {
		args = append(args, q.FilterWikiID)
		wikiArg = len(args)
	}

	if q.FilterType == "" || q.FilterType == ResultPage {
		sub := `
			SELECT 'page' AS type, p.id, v.title,
				ts_headline('english', v.search_text, plainto_tsquery('english', $1),
					'StartSel=<mark>, StopSel=</mark>, MaxWords=30, MinWords=10') AS snippet,
				p.id AS page_id, p.wiki_id,
				ts_rank(to_tsvector('english', v.title || ' ' || v.search_text),
					plainto_tsquery('english', $1)) AS rank
			FROM pages p
			JOIN page_versions v ON v.page_id = p.id AND v.version = p.current_version
			WHERE p.deleted_at IS NULL
				AND to_tsvector('english', v.title || ' ' || v.search_text) @@ plainto_tsquery('english', $1)`
		if wikiArg > 0 {
			sub += fmt.Sprintf(" AND p.wiki_id = $%d", wikiArg)
		}
		subQueries = append(subQueries, sub)
	}

	if q.FilterType == "" || q.FilterType == ResultThread {
		sub := `
			SELECT 'thread' AS type, t.id, COALESCE(a.text_snapshot, '') AS title,
				ts_headline('english', string_agg(m.body, ' '), plainto_tsquery('english', $1),
					'StartSel=<mark>, StopSel=</mark>, MaxWords=30, MinWords=10') AS snippet,
				t.page_id, p.wiki_id,
				ts_rank(to_tsvector('english', COALESCE(a.text_snapshot, '') || ' ' || string_agg(m.body, ' ')),
					plainto_tsquery('english', $1)) AS rank
			FROM threads t
			JOIN pages p ON p.id = t.page_id
			JOIN anchors a ON a.id = t.anchor_id
			JOIN thread_messages m ON m.thread_id = t.id
			WHERE p.deleted_at IS NULL
			GROUP BY t.id, t.page_id, p.wiki_id, a.text_snapshot
			HAVING to_tsvector('english', COALESCE(a.text_snapshot, '') || ' ' || string_agg(m.body, ' ')) @@ plainto_tsquery('english', $1)`
		if wikiArg > 0 {
			sub += fmt.Sprintf(" AND p.wiki_id = $%d", wikiArg)
		}
		subQueries = append(subQueries, sub)
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, "\nUNION ALL\n")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM (%s) results", union)
	var total int
	if err := p.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT type, id, title, snippet, page_id, wiki_id FROM (%s) results ORDER BY rank DESC LIMIT $%d OFFSET $%d",
		union, len(args)+1, len(args)+2)
	dataArgs := append(args, limit, q.Offset)

	rows, err := p.db.Query(dataQuery, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query search results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.PageID, &r.WikiID); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}
