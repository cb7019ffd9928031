package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"safetycheck/api/internal/checklist"
)

const inspectionColumns = `i.id, i.user_id, COALESCE(u.name, ''), i.status, i.title, i.latitude, i.longitude,
	i.location, i.submitted_at, i.created_at, i.updated_at`

func scanInspection(row rowScanner, extra ...any) (Inspection, error) {
	var inspection Inspection
	var latitude, longitude sql.NullFloat64
	var submittedAt sql.NullTime
	dest := []any{
		&inspection.ID,
		&inspection.UserID,
		&inspection.UserName,
		&inspection.Status,
		&inspection.Title,
		&latitude,
		&longitude,
		&inspection.Location,
		&submittedAt,
		&inspection.CreatedAt,
		&inspection.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Inspection{}, err
	}
	if latitude.Valid {
		inspection.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		inspection.Longitude = &longitude.Float64
	}
	inspection.SubmittedAt = nullTime(submittedAt)
	return inspection, nil
}

func (s *PostgresStore) GetInspection(ctx context.Context, id string) (Inspection, error) {
	return scanInspection(s.db.QueryRowContext(ctx, `
		SELECT `+inspectionColumns+`
		FROM inspections i
		LEFT JOIN users u ON u.id = i.user_id
		WHERE i.id = $1
	`, id))
}

func inspectionListQuery(filter InspectionFilter) (sq.SelectBuilder, sq.SelectBuilder) {
	where := sq.And{}
	if filter.UserID != "" {
		where = append(where, sq.Eq{"i.user_id": filter.UserID})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"i.status": filter.Status})
	}
	if text := strings.TrimSpace(filter.Query); text != "" {
		pattern := "%" + text + "%"
		where = append(where, sq.Or{
			sq.ILike{"i.title": pattern},
			sq.ILike{"i.location": pattern},
			sq.ILike{"u.name": pattern},
		})
	}

	list := psql.Select(inspectionColumns,
		"(SELECT COUNT(*) FROM inspection_responses r WHERE r.inspection_id = i.id)",
		"(SELECT COUNT(*) FROM inspection_images im WHERE im.inspection_id = i.id)",
	).
		From("inspections i").
		LeftJoin("users u ON u.id = i.user_id").
		OrderBy("i.created_at DESC", "i.id")
	count := psql.Select("COUNT(*)").
		From("inspections i").
		LeftJoin("users u ON u.id = i.user_id")

	if len(where) > 0 {
		list = list.Where(where)
		count = count.Where(where)
	}
	if filter.Limit > 0 {
		list = list.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		list = list.Offset(uint64(filter.Offset))
	}
	return list, count
}

// ListInspections returns one page of inspections and the total match count.
func (s *PostgresStore) ListInspections(ctx context.Context, filter InspectionFilter) ([]Inspection, int, error) {
	listQuery, countQuery := inspectionListQuery(filter)

	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inspections: %w", err)
	}

	listSQL, listArgs, err := listQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list inspections: %w", err)
	}
	defer rows.Close()

	inspections := make([]Inspection, 0)
	for rows.Next() {
		var responses, images int
		inspection, err := scanInspection(rows, &responses, &images)
		if err != nil {
			return nil, 0, fmt.Errorf("scan inspection: %w", err)
		}
		inspection.ResponseCount = responses
		inspection.ImageCount = images
		inspections = append(inspections, inspection)
	}
	return inspections, total, rows.Err()
}

func (s *PostgresStore) ListResponses(ctx context.Context, inspectionID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inspection_id, section_number, section_title, question_number, question_text,
			response, COALESCE(text_value, ''), list_values, created_at
		FROM inspection_responses
		WHERE inspection_id = $1
		ORDER BY section_number, question_number
	`, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	responses := make([]Response, 0)
	for rows.Next() {
		var response Response
		var answer string
		var listValues []byte
		if err := rows.Scan(
			&response.ID,
			&response.InspectionID,
			&response.SectionNumber,
			&response.SectionTitle,
			&response.QuestionNumber,
			&response.QuestionText,
			&answer,
			&response.TextValue,
			&listValues,
			&response.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		response.Answer = checklist.Answer(answer)
		if len(listValues) > 0 {
			if err := json.Unmarshal(listValues, &response.ListValues); err != nil {
				return nil, fmt.Errorf("decode list values: %w", err)
			}
			if len(response.ListValues) == 0 {
				response.ListValues = nil
			}
		}
		responses = append(responses, response)
	}
	return responses, rows.Err()
}

func (s *PostgresStore) ListImages(ctx context.Context, inspectionID string) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inspection_id, url, caption, type, section_number, COALESCE(uploaded_by, ''), sort_order, created_at
		FROM inspection_images
		WHERE inspection_id = $1
		ORDER BY sort_order, id
	`, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := make([]Image, 0)
	for rows.Next() {
		var image Image
		var imageType string
		if err := rows.Scan(
			&image.ID,
			&image.InspectionID,
			&image.URL,
			&image.Caption,
			&imageType,
			&image.SectionNumber,
			&image.UploadedBy,
			&image.SortOrder,
			&image.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		image.Type = checklist.ImageType(imageType)
		images = append(images, image)
	}
	return images, rows.Err()
}

func (s *PostgresStore) ListAuditLog(ctx context.Context, inspectionID string) ([]AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inspection_id, COALESCE(user_id, ''), action, description, old_value, new_value, created_at
		FROM inspection_logs
		WHERE inspection_id = $1
		ORDER BY created_at DESC, id DESC
	`, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditLogEntry, 0)
	for rows.Next() {
		var entry AuditLogEntry
		var oldValue, newValue []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.InspectionID,
			&entry.UserID,
			&entry.Action,
			&entry.Description,
			&oldValue,
			&newValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entry.OldValue = oldValue
		entry.NewValue = newValue
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func patchQuery(id string, patch InspectionPatch) (string, []any, error) {
	update := psql.Update("inspections").Set("updated_at", sq.Expr("NOW()"))
	if patch.Title != nil {
		update = update.Set("title", *patch.Title)
	}
	if patch.Latitude != nil {
		update = update.Set("latitude", *patch.Latitude)
	}
	if patch.Longitude != nil {
		update = update.Set("longitude", *patch.Longitude)
	}
	if patch.Location != nil {
		update = update.Set("location", *patch.Location)
	}
	if patch.Status != nil {
		update = update.Set("status", *patch.Status)
	}
	return update.Where(sq.Eq{"id": id}).ToSql()
}

// PatchInspection updates top-level fields only. Responses and images are
// never touched.
func (s *PostgresStore) PatchInspection(ctx context.Context, id string, patch InspectionPatch) error {
	query, args, err := patchQuery(id, patch)
	if err != nil {
		return fmt.Errorf("build patch query: %w", err)
	}
	return s.execOne(ctx, "patch inspection", query, args...)
}

// DeleteInspection removes the inspection; responses, images and log entries
// go with it through ON DELETE CASCADE.
func (s *PostgresStore) DeleteInspection(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete inspection", `DELETE FROM inspections WHERE id=$1`, id)
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, psql.Select("COUNT(*)").From("users"))
}

func (s *PostgresStore) CountImages(ctx context.Context) (int, error) {
	return s.count(ctx, psql.Select("COUNT(*)").From("inspection_images"))
}

// CountInspections counts inspections created at or after since; a zero
// since counts all of them.
func (s *PostgresStore) CountInspections(ctx context.Context, since time.Time) (int, error) {
	query := psql.Select("COUNT(*)").From("inspections")
	if !since.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": since})
	}
	return s.count(ctx, query)
}

func (s *PostgresStore) count(ctx context.Context, query sq.SelectBuilder) (int, error) {
	sqlText, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, sqlText, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) InspectionsByStatus(ctx context.Context) ([]StatusCount, error) {
	sqlText, args, err := psql.Select("status", "COUNT(*)").
		From("inspections").
		GroupBy("status").
		OrderBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build status counts: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	counts := make([]StatusCount, 0)
	for rows.Next() {
		var count StatusCount
		if err := rows.Scan(&count.Status, &count.Count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

func (s *PostgresStore) TopInspectors(ctx context.Context, limit int) ([]InspectorCount, error) {
	sqlText, args, err := psql.Select("u.id", "u.name", "u.email", "COUNT(i.id) AS total").
		From("users u").
		Join("inspections i ON i.user_id = u.id").
		GroupBy("u.id", "u.name", "u.email").
		OrderBy("total DESC", "u.name").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build top inspectors: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("top inspectors: %w", err)
	}
	defer rows.Close()

	inspectors := make([]InspectorCount, 0)
	for rows.Next() {
		var inspector InspectorCount
		if err := rows.Scan(&inspector.UserID, &inspector.Name, &inspector.Email, &inspector.Count); err != nil {
			return nil, fmt.Errorf("scan top inspector: %w", err)
		}
		inspectors = append(inspectors, inspector)
	}
	return inspectors, rows.Err()
}
