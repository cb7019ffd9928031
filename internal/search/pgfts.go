package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	tsDocument = `to_tsvector('portuguese', i.title || ' ' || i.location || ' ' || COALESCE(u.name, ''))`
	tsQuery    = `plainto_tsquery('portuguese', ?)`
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PgFTS implements Searcher with PostgreSQL full-text search. Free-text
// answers are matched with ILIKE since they live in a child table.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

func pgWhere(q Query) sq.And {
	where := sq.And{}
	if text := strings.TrimSpace(q.Text); text != "" {
		where = append(where, sq.Or{
			sq.Expr(tsDocument+" @@ "+tsQuery, text),
			sq.ILike{"i.title": "%" + text + "%"},
			sq.Expr(`EXISTS (SELECT 1 FROM inspection_responses r WHERE r.inspection_id = i.id AND r.text_value ILIKE ?)`, "%"+text+"%"),
		})
	}
	if q.Status != "" {
		where = append(where, sq.Eq{"i.status": q.Status})
	}
	if q.UserID != "" {
		where = append(where, sq.Eq{"i.user_id": q.UserID})
	}
	return where
}

func pgQueries(q Query) (sq.SelectBuilder, sq.SelectBuilder) {
	where := pgWhere(q)
	data := psql.Select("i.id", "i.title", "i.location", "i.status", "COALESCE(u.name, '')").
		From("inspections i").
		LeftJoin("users u ON u.id = i.user_id").
		OrderBy("i.created_at DESC").
		Limit(uint64(normalizeLimit(q.Limit))).
		Offset(uint64(max(q.Offset, 0)))
	count := psql.Select("COUNT(*)").
		From("inspections i").
		LeftJoin("users u ON u.id = i.user_id")
	if len(where) > 0 {
		data = data.Where(where)
		count = count.Where(where)
	}
	return data, count
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	data, count := pgQueries(q)

	countSQL, countArgs, err := count.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts count build: %w", err)
	}
	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL, dataArgs, err := data.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query build: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Location, &r.Status, &r.InspectorName); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Snippet = r.Location
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every inspection for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]InspectionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT i.id, i.title, i.location, i.status, i.user_id, COALESCE(u.name, ''),
			COALESCE(string_agg(r.text_value, ' ' ORDER BY r.section_number, r.question_number), ''),
			EXTRACT(EPOCH FROM i.created_at)::bigint
		FROM inspections i
		LEFT JOIN users u ON u.id = i.user_id
		LEFT JOIN inspection_responses r ON r.inspection_id = i.id AND r.text_value IS NOT NULL
		GROUP BY i.id, u.name
	`)
	if err != nil {
		return nil, fmt.Errorf("load inspections: %w", err)
	}
	defer rows.Close()

	records := make([]InspectionRecord, 0)
	for rows.Next() {
		var rec InspectionRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Location, &rec.Status, &rec.UserID, &rec.InspectorName, &rec.Notes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inspection record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inspections: %w", err)
	}
	return records, nil
}
