package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"safetycheck/api/internal/checklist"
)

// TxBounds limits a write transaction. MaxWait caps how long we wait for a
// connection and for row locks; Timeout caps the whole transaction.
type TxBounds struct {
	MaxWait time.Duration
	Timeout time.Duration
}

// ErrTxWait reports that no connection became available within MaxWait.
var ErrTxWait = errors.New("transaction wait exceeded")

// Writer is the set of writes that must commit or roll back together.
type Writer interface {
	InsertInspection(ctx context.Context, inspection Inspection) error
	UpdateInspection(ctx context.Context, inspection Inspection) error
	DeleteResponses(ctx context.Context, inspectionID string) error
	InsertResponses(ctx context.Context, inspectionID string, responses []checklist.Response) error
	DeleteImages(ctx context.Context, inspectionID string) error
	InsertImages(ctx context.Context, inspectionID string, images []checklist.Image) error
	InsertAuditLog(ctx context.Context, entry AuditLogEntry) error
}

type txWriter struct {
	tx *sql.Tx
}

// WithinTx runs fn in a single transaction. Any error from fn, or a blown
// bound, rolls everything back.
func (s *PostgresStore) WithinTx(ctx context.Context, bounds TxBounds, fn func(context.Context, Writer) error) error {
	if bounds.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bounds.Timeout)
		defer cancel()
	}

	waitCtx := ctx
	if bounds.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, bounds.MaxWait)
		defer cancel()
	}
	conn, err := s.db.Conn(waitCtx)
	if err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return ErrTxWait
		}
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range boundStatements(bounds) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("set tx bounds: %w", err)
		}
	}

	if err := fn(ctx, &txWriter{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func boundStatements(bounds TxBounds) []string {
	var stmts []string
	if bounds.MaxWait > 0 {
		stmts = append(stmts, fmt.Sprintf("SET LOCAL lock_timeout = %d", bounds.MaxWait.Milliseconds()))
	}
	if bounds.Timeout > 0 {
		stmts = append(stmts, fmt.Sprintf("SET LOCAL statement_timeout = %d", bounds.Timeout.Milliseconds()))
	}
	return stmts
}

func (w *txWriter) InsertInspection(ctx context.Context, inspection Inspection) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO inspections (id, user_id, status, title, latitude, longitude, location, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, inspection.ID, inspection.UserID, inspection.Status, inspection.Title,
		inspection.Latitude, inspection.Longitude, inspection.Location, inspection.SubmittedAt, inspection.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert inspection: %w", err)
	}
	return nil
}

func (w *txWriter) UpdateInspection(ctx context.Context, inspection Inspection) error {
	result, err := w.tx.ExecContext(ctx, `
		UPDATE inspections
		SET status=$2, title=$3, latitude=$4, longitude=$5, location=$6, submitted_at=$7, updated_at=NOW()
		WHERE id=$1
	`, inspection.ID, inspection.Status, inspection.Title, inspection.Latitude, inspection.Longitude,
		inspection.Location, inspection.SubmittedAt)
	if err != nil {
		return fmt.Errorf("update inspection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update inspection: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (w *txWriter) DeleteResponses(ctx context.Context, inspectionID string) error {
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM inspection_responses WHERE inspection_id=$1`, inspectionID); err != nil {
		return fmt.Errorf("delete responses: %w", err)
	}
	return nil
}

func insertResponsesQuery(inspectionID string, responses []checklist.Response) (string, []any, error) {
	insert := psql.Insert("inspection_responses").Columns(
		"inspection_id", "section_number", "section_title", "question_number", "question_text",
		"response", "text_value", "list_values",
	)
	for _, response := range responses {
		listValues := response.ListValues
		if listValues == nil {
			listValues = []string{}
		}
		encoded, err := json.Marshal(listValues)
		if err != nil {
			return "", nil, fmt.Errorf("encode list values: %w", err)
		}
		var textValue any
		if response.TextValue != "" {
			textValue = response.TextValue
		}
		insert = insert.Values(
			inspectionID,
			response.SectionNumber,
			response.SectionTitle,
			response.QuestionNumber,
			response.QuestionText,
			string(response.Answer),
			textValue,
			sq.Expr("?::jsonb", string(encoded)),
		)
	}
	return insert.ToSql()
}

func (w *txWriter) InsertResponses(ctx context.Context, inspectionID string, responses []checklist.Response) error {
	if len(responses) == 0 {
		return nil
	}
	query, args, err := insertResponsesQuery(inspectionID, responses)
	if err != nil {
		return fmt.Errorf("build responses insert: %w", err)
	}
	if _, err := w.tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert responses: %w", err)
	}
	return nil
}

func (w *txWriter) DeleteImages(ctx context.Context, inspectionID string) error {
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM inspection_images WHERE inspection_id=$1`, inspectionID); err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	return nil
}

func insertImagesQuery(inspectionID string, images []checklist.Image) (string, []any, error) {
	insert := psql.Insert("inspection_images").Columns(
		"inspection_id", "url", "caption", "type", "section_number", "uploaded_by", "sort_order",
	)
	for i, image := range images {
		var uploadedBy any
		if image.UploadedBy != "" {
			uploadedBy = image.UploadedBy
		}
		insert = insert.Values(
			inspectionID,
			image.URL,
			image.Caption,
			string(image.Type),
			image.SectionNumber,
			uploadedBy,
			i,
		)
	}
	return insert.ToSql()
}

func (w *txWriter) InsertImages(ctx context.Context, inspectionID string, images []checklist.Image) error {
	if len(images) == 0 {
		return nil
	}
	query, args, err := insertImagesQuery(inspectionID, images)
	if err != nil {
		return fmt.Errorf("build images insert: %w", err)
	}
	if _, err := w.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert images: %w", err)
	}
	return nil
}

func (w *txWriter) InsertAuditLog(ctx context.Context, entry AuditLogEntry) error {
	var userID any
	if entry.UserID != "" {
		userID = entry.UserID
	}
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO inspection_logs (inspection_id, user_id, action, description, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.InspectionID, userID, entry.Action, entry.Description, jsonOrNil(entry.OldValue), jsonOrNil(entry.NewValue))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func jsonOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
