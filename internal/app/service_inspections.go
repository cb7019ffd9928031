package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"safetycheck/api/internal/checklist"
	"safetycheck/api/internal/export"
	"safetycheck/api/internal/log"
	"safetycheck/api/internal/notify"
	"safetycheck/api/internal/photo"
	"safetycheck/api/internal/search"
	"safetycheck/api/internal/store"
	"safetycheck/api/internal/util"
)

const (
	actionCreated           = "CREATED"
	actionUpdated           = "UPDATED"
	actionSubmitted         = "SUBMITTED"
	actionEditedAfterSubmit = "EDITED_AFTER_SUBMIT"

	defaultPageSize = 10
	maxPageSize     = 100
	uploadMaxBytes  = 10 << 20
)

// SaveResult is returned by create and replace. Gaps lists input the
// catalog could not place; those fields were dropped.
type SaveResult struct {
	Inspection     store.Inspection `json:"inspection"`
	ResponsesCount int              `json:"responsesCount"`
	ImagesCount    int              `json:"imagesCount"`
	Gaps           []checklist.Gap  `json:"gaps"`
}

type AutosaveInput struct {
	Title    *string             `json:"title"`
	Location *checklist.Location `json:"location"`
	Status   *string             `json:"status"`
}

type FormView struct {
	Inspection store.Inspection      `json:"inspection"`
	Form       *checklist.Submission `json:"form"`
	Gaps       []checklist.Gap       `json:"gaps"`
}

type InspectionDetail struct {
	store.Inspection
	Responses []store.Response      `json:"responses"`
	Images    []store.Image         `json:"images"`
	Logs      []store.AuditLogEntry `json:"logs"`
}

type ListFilter struct {
	Status string
	Query  string
	UserID string
	Page   int
	Limit  int
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type InspectionPage struct {
	Inspections []store.Inspection `json:"inspections"`
	Pagination  Pagination         `json:"pagination"`
}

type ReportSummary struct {
	TotalUsers        int                    `json:"totalUsers"`
	TotalInspections  int                    `json:"totalInspections"`
	TotalImages       int                    `json:"totalImages"`
	RecentInspections int                    `json:"recentInspections"`
	ByStatus          []store.StatusCount    `json:"byStatus"`
	TopInspectors     []store.InspectorCount `json:"topInspectors"`
}

type UploadResult struct {
	URL          string `json:"url"`
	Key          string `json:"key"`
	FileName     string `json:"fileName"`
	Size         int    `json:"size"`
	OriginalSize int    `json:"originalSize"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

func payloadStatus(raw string) (string, error) {
	switch status := strings.ToUpper(strings.TrimSpace(raw)); status {
	case "", statusDraft:
		return statusDraft, nil
	case statusSubmitted:
		return statusSubmitted, nil
	default:
		return "", badRequest("INVALID_STATUS", "Status inválido: "+raw)
	}
}

func snapshot(status string, responses, images int) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"status":         status,
		"responsesCount": responses,
		"imagesCount":    images,
	})
	return raw
}

func applyLocation(rec *store.Inspection, loc *checklist.Location) {
	if loc == nil {
		return
	}
	rec.Latitude = loc.Latitude
	rec.Longitude = loc.Longitude
	rec.Location = strings.TrimSpace(loc.Address)
}

func (s *Service) defaultTitle(now time.Time) string {
	return "Inspeção " + now.Format("02/01/2006 15:04")
}

func (s *Service) loadInspection(ctx context.Context, id string) (store.Inspection, error) {
	rec, err := s.store.GetInspection(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Inspection{}, notFound("Inspeção não encontrada")
	}
	return rec, err
}

// checkEditable allows the owner to edit a draft and an admin to edit a
// submitted record.
func checkEditable(actor Session, rec store.Inspection) error {
	owner := rec.UserID == actor.UserID
	admin := actor.isAdmin()
	switch {
	case owner && rec.Status == statusDraft:
		return nil
	case admin && rec.Status == statusSubmitted:
		return nil
	case !owner && !admin:
		return ownershipError("Você não tem permissão para editar esta inspeção")
	default:
		return stateError("Inspeção não pode ser editada no status atual", map[string]any{"status": rec.Status})
	}
}

func checkReadable(actor Session, rec store.Inspection) error {
	if rec.UserID == actor.UserID || actor.isAdmin() {
		return nil
	}
	return ownershipError("Você não tem permissão para acessar esta inspeção")
}

func (s *Service) txError(op, inspectionID string, err error) error {
	var domain *DomainError
	if errors.As(err, &domain) {
		return domain
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("Inspeção não encontrada")
	}
	log.WithFields(log.Fields{"inspection_id": inspectionID, "op": op}).Errorf("transaction failed: %v", err)
	return transactionFailure()
}

func (s *Service) logGaps(inspectionID string, gaps []checklist.Gap) {
	for _, gap := range gaps {
		log.WithFields(log.Fields{
			"inspection_id": inspectionID,
			"section":       gap.Section,
			"key":           gap.Key,
			"question":      gap.QuestionNumber,
			"reason":        gap.Reason,
		}).Debug("mapping gap")
	}
}

func nonNilGaps(gaps []checklist.Gap) []checklist.Gap {
	if gaps == nil {
		return []checklist.Gap{}
	}
	return gaps
}

// CreateInspection stores a new draft or submitted inspection. Drafts are
// accepted as they are; submissions must pass full validation.
func (s *Service) CreateInspection(ctx context.Context, actor Session, sub *checklist.Submission) (SaveResult, error) {
	if sub == nil {
		sub = checklist.NewSubmission()
	}
	status, err := payloadStatus(sub.Status)
	if err != nil {
		return SaveResult{}, err
	}
	if status == statusSubmitted {
		if errs := s.catalog.Validate(sub); len(errs) > 0 {
			return SaveResult{}, validationError(errs)
		}
	}

	mapped := s.catalog.Map(sub, actor.UserID)
	responses := checklist.Dedup(mapped.Responses)

	now := s.now()
	rec := store.Inspection{
		ID:        util.NewID("insp"),
		UserID:    actor.UserID,
		UserName:  actor.UserName,
		Status:    status,
		Title:     strings.TrimSpace(sub.Title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rec.Title == "" {
		rec.Title = s.defaultTitle(now)
	}
	applyLocation(&rec, sub.Location)
	if status == statusSubmitted {
		rec.SubmittedAt = &now
	}

	entry := store.AuditLogEntry{
		InspectionID: rec.ID,
		UserID:       actor.UserID,
		Action:       actionCreated,
		Description:  fmt.Sprintf("Rascunho de inspeção criado com %d respostas", len(responses)),
		NewValue:     snapshot(status, len(responses), len(mapped.Images)),
	}
	if status == statusSubmitted {
		entry.Action = actionSubmitted
		entry.Description = fmt.Sprintf("Inspeção criada e submetida com %d respostas e %d imagens", len(responses), len(mapped.Images))
	}

	err = s.store.WithinTx(ctx, s.txBounds(), func(ctx context.Context, w store.Writer) error {
		if err := w.InsertInspection(ctx, rec); err != nil {
			return err
		}
		if err := w.InsertResponses(ctx, rec.ID, responses); err != nil {
			return err
		}
		if err := w.InsertImages(ctx, rec.ID, mapped.Images); err != nil {
			return err
		}
		return w.InsertAuditLog(ctx, entry)
	})
	if err != nil {
		return SaveResult{}, s.txError("create", rec.ID, err)
	}

	log.WithFields(log.Fields{
		"inspection_id": rec.ID,
		"user_id":       actor.UserID,
		"status":        status,
		"responses":     len(responses),
		"images":        len(mapped.Images),
	}).Info("inspection created")
	s.logGaps(rec.ID, mapped.Gaps)
	s.indexInspection(rec, responses)
	if status == statusSubmitted {
		s.notifySubmitted(rec, responses)
	}

	rec.ResponseCount = len(responses)
	rec.ImageCount = len(mapped.Images)
	return SaveResult{
		Inspection:     rec,
		ResponsesCount: len(responses),
		ImagesCount:    len(mapped.Images),
		Gaps:           nonNilGaps(mapped.Gaps),
	}, nil
}

// ReplaceInspection overwrites all responses and images of an inspection
// with the mapped payload. A submitted inspection stays submitted.
func (s *Service) ReplaceInspection(ctx context.Context, actor Session, id string, sub *checklist.Submission) (SaveResult, error) {
	if sub == nil {
		sub = checklist.NewSubmission()
	}
	current, err := s.loadInspection(ctx, id)
	if err != nil {
		return SaveResult{}, err
	}
	if err := checkEditable(actor, current); err != nil {
		return SaveResult{}, err
	}

	status, err := payloadStatus(sub.Status)
	if err != nil {
		return SaveResult{}, err
	}
	wasSubmitted := current.Status == statusSubmitted
	if wasSubmitted {
		status = statusSubmitted
	}
	if status == statusSubmitted {
		if errs := s.catalog.Validate(sub); len(errs) > 0 {
			return SaveResult{}, validationError(errs)
		}
	}

	mapped := s.catalog.Map(sub, actor.UserID)
	responses := checklist.Dedup(mapped.Responses)

	previous, err := s.store.ListResponses(ctx, id)
	if err != nil {
		return SaveResult{}, err
	}
	previousImages, err := s.store.ListImages(ctx, id)
	if err != nil {
		return SaveResult{}, err
	}

	now := s.now()
	rec := current
	rec.Status = status
	rec.UpdatedAt = now
	if title := strings.TrimSpace(sub.Title); title != "" {
		rec.Title = title
	}
	applyLocation(&rec, sub.Location)
	if status == statusSubmitted && rec.SubmittedAt == nil {
		rec.SubmittedAt = &now
	}

	entry := store.AuditLogEntry{
		InspectionID: id,
		UserID:       actor.UserID,
		Action:       actionUpdated,
		Description:  fmt.Sprintf("Rascunho atualizado com %d respostas", len(responses)),
		OldValue:     snapshot(current.Status, len(previous), len(previousImages)),
		NewValue:     snapshot(status, len(responses), len(mapped.Images)),
	}
	switch {
	case wasSubmitted:
		entry.Action = actionEditedAfterSubmit
		entry.Description = fmt.Sprintf("Inspeção editada após submissão por %s", actor.UserName)
	case status == statusSubmitted:
		entry.Action = actionSubmitted
		entry.Description = fmt.Sprintf("Inspeção submetida com %d respostas e %d imagens", len(responses), len(mapped.Images))
	}

	err = s.store.WithinTx(ctx, s.txBounds(), func(ctx context.Context, w store.Writer) error {
		if err := w.UpdateInspection(ctx, rec); err != nil {
			return err
		}
		if err := w.DeleteResponses(ctx, id); err != nil {
			return err
		}
		if err := w.InsertResponses(ctx, id, responses); err != nil {
			return err
		}
		if err := w.DeleteImages(ctx, id); err != nil {
			return err
		}
		if err := w.InsertImages(ctx, id, mapped.Images); err != nil {
			return err
		}
		return w.InsertAuditLog(ctx, entry)
	})
	if err != nil {
		return SaveResult{}, s.txError("replace", id, err)
	}

	log.WithFields(log.Fields{
		"inspection_id": id,
		"user_id":       actor.UserID,
		"action":        entry.Action,
		"responses":     len(responses),
		"images":        len(mapped.Images),
	}).Info("inspection replaced")
	s.logGaps(id, mapped.Gaps)
	s.indexInspection(rec, responses)
	switch {
	case wasSubmitted:
		s.notifyEdited(rec, responses, describeChanges(previous, responses))
	case status == statusSubmitted:
		s.notifySubmitted(rec, responses)
	}

	rec.ResponseCount = len(responses)
	rec.ImageCount = len(mapped.Images)
	return SaveResult{
		Inspection:     rec,
		ResponsesCount: len(responses),
		ImagesCount:    len(mapped.Images),
		Gaps:           nonNilGaps(mapped.Gaps),
	}, nil
}

// AutosaveInspection writes top-level fields only. It never validates and
// never submits.
func (s *Service) AutosaveInspection(ctx context.Context, actor Session, id string, in AutosaveInput) (store.Inspection, error) {
	current, err := s.loadInspection(ctx, id)
	if err != nil {
		return store.Inspection{}, err
	}
	if err := checkEditable(actor, current); err != nil {
		return store.Inspection{}, err
	}

	var patch store.InspectionPatch
	if in.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*in.Status))
		switch {
		case status == current.Status:
		case status == statusSubmitted:
			return store.Inspection{}, stateError("Use o envio completo para submeter a inspeção", map[string]any{"status": current.Status})
		case status == statusDraft:
			return store.Inspection{}, stateError("Inspeção submetida não pode voltar a rascunho", map[string]any{"status": current.Status})
		default:
			return store.Inspection{}, badRequest("INVALID_STATUS", "Status inválido: "+*in.Status)
		}
	}
	if in.Title != nil {
		if title := strings.TrimSpace(*in.Title); title != "" {
			patch.Title = &title
		}
	}
	if in.Location != nil {
		address := strings.TrimSpace(in.Location.Address)
		patch.Location = &address
		patch.Latitude = in.Location.Latitude
		patch.Longitude = in.Location.Longitude
	}

	if err := s.store.PatchInspection(ctx, id, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Inspection{}, notFound("Inspeção não encontrada")
		}
		return store.Inspection{}, err
	}
	rec, err := s.loadInspection(ctx, id)
	if err != nil {
		return store.Inspection{}, err
	}
	if s.search != nil {
		if rows, err := s.store.ListResponses(ctx, id); err == nil {
			s.indexInspection(rec, responseRows(rows))
		}
	}
	return rec, nil
}

// DeleteInspection removes a draft owned by the actor.
func (s *Service) DeleteInspection(ctx context.Context, actor Session, id string) error {
	rec, err := s.loadInspection(ctx, id)
	if err != nil {
		return err
	}
	if rec.UserID != actor.UserID {
		return ownershipError("Você não tem permissão para excluir esta inspeção")
	}
	if rec.Status != statusDraft {
		return stateError("Apenas rascunhos podem ser excluídos", map[string]any{"status": rec.Status})
	}
	if err := s.store.DeleteInspection(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Inspeção não encontrada")
		}
		return err
	}
	log.WithFields(log.Fields{"inspection_id": id, "user_id": actor.UserID}).Info("inspection deleted")
	if s.search != nil {
		s.search.DeleteInspection(id)
	}
	return nil
}

func responseRows(rows []store.Response) []checklist.Response {
	out := make([]checklist.Response, len(rows))
	for i, row := range rows {
		out[i] = row.Response
	}
	return out
}

func imageRows(rows []store.Image) []checklist.Image {
	out := make([]checklist.Image, len(rows))
	for i, row := range rows {
		out[i] = row.Image
	}
	return out
}

func (s *Service) loadRows(ctx context.Context, id string) ([]store.Response, []store.Image, error) {
	var responses []store.Response
	var images []store.Image
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		responses, err = s.store.ListResponses(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		images, err = s.store.ListImages(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return responses, images, nil
}

// HydrateForm rebuilds the nested form for editing.
func (s *Service) HydrateForm(ctx context.Context, actor Session, id string) (FormView, error) {
	rec, err := s.loadInspection(ctx, id)
	if err != nil {
		return FormView{}, err
	}
	if err := checkReadable(actor, rec); err != nil {
		return FormView{}, err
	}
	responses, images, err := s.loadRows(ctx, id)
	if err != nil {
		return FormView{}, err
	}

	hydrated := s.catalog.Hydrate(responseRows(responses), imageRows(images))
	form := hydrated.Submission
	form.Status = rec.Status
	form.Title = rec.Title
	if rec.Latitude != nil || rec.Longitude != nil || rec.Location != "" {
		form.Location = &checklist.Location{Latitude: rec.Latitude, Longitude: rec.Longitude, Address: rec.Location}
	}
	s.logGaps(id, hydrated.Gaps)
	return FormView{Inspection: rec, Form: form, Gaps: nonNilGaps(hydrated.Gaps)}, nil
}

func (s *Service) GetInspection(ctx context.Context, actor Session, id string) (InspectionDetail, error) {
	rec, err := s.loadInspection(ctx, id)
	if err != nil {
		return InspectionDetail{}, err
	}
	if err := checkReadable(actor, rec); err != nil {
		return InspectionDetail{}, err
	}
	responses, images, err := s.loadRows(ctx, id)
	if err != nil {
		return InspectionDetail{}, err
	}
	logs, err := s.store.ListAuditLog(ctx, id)
	if err != nil {
		return InspectionDetail{}, err
	}
	rec.ResponseCount = len(responses)
	rec.ImageCount = len(images)
	return InspectionDetail{Inspection: rec, Responses: responses, Images: images, Logs: logs}, nil
}

func (s *Service) listPage(ctx context.Context, filter ListFilter) (InspectionPage, error) {
	status := strings.ToUpper(strings.TrimSpace(filter.Status))
	switch status {
	case "", statusDraft, statusSubmitted, "ARCHIVED":
	default:
		return InspectionPage{}, badRequest("INVALID_STATUS", "Status inválido: "+filter.Status)
	}
	page := max(filter.Page, 1)
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	items, total, err := s.store.ListInspections(ctx, store.InspectionFilter{
		UserID: filter.UserID,
		Status: status,
		Query:  filter.Query,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return InspectionPage{}, err
	}
	if items == nil {
		items = []store.Inspection{}
	}
	return InspectionPage{
		Inspections: items,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

// ListInspections pages through the actor's own inspections, newest first.
func (s *Service) ListInspections(ctx context.Context, actor Session, filter ListFilter) (InspectionPage, error) {
	filter.UserID = actor.UserID
	return s.listPage(ctx, filter)
}

func (s *Service) ListAllInspections(ctx context.Context, actor Session, filter ListFilter) (InspectionPage, error) {
	if !actor.isAdmin() {
		return InspectionPage{}, ownershipError("Acesso restrito a administradores")
	}
	return s.listPage(ctx, filter)
}

// SearchInspections uses the search index when one is configured and the
// inspection listing otherwise.
func (s *Service) SearchInspections(ctx context.Context, q search.Query) (search.Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))
	if s.search != nil {
		return s.search.Search(ctx, q), nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	items, total, err := s.store.ListInspections(ctx, store.InspectionFilter{
		UserID: q.UserID,
		Status: q.Status,
		Query:  q.Text,
		Limit:  min(limit, maxPageSize),
		Offset: q.Offset,
	})
	if err != nil {
		return search.Response{}, err
	}
	results := make([]search.Result, 0, len(items))
	for _, item := range items {
		results = append(results, search.Result{
			ID:            item.ID,
			Title:         item.Title,
			Status:        item.Status,
			InspectorName: item.UserName,
			Location:      item.Location,
		})
	}
	return search.Response{Results: results, Total: total, Query: q.Text, Backend: "postgres"}, nil
}

// Reports gathers the admin dashboard figures concurrently.
func (s *Service) Reports(ctx context.Context) (ReportSummary, error) {
	var out ReportSummary
	since := s.now().AddDate(0, 0, -30)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalUsers, err = s.store.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.TotalInspections, err = s.store.CountInspections(gctx, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		out.TotalImages, err = s.store.CountImages(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.RecentInspections, err = s.store.CountInspections(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		out.ByStatus, err = s.store.InspectionsByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.TopInspectors, err = s.store.TopInspectors(gctx, 10)
		return err
	})
	if err := g.Wait(); err != nil {
		return ReportSummary{}, err
	}
	return out, nil
}

func (s *Service) ExportInspectionPDF(ctx context.Context, actor Session, id string) (*export.Result, error) {
	rec, err := s.loadInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkReadable(actor, rec); err != nil {
		return nil, err
	}
	if s.pdf == nil {
		return nil, export.ErrPDFDependencyMissing
	}
	responses, images, err := s.loadRows(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.pdf.InspectionPDF(ctx, export.Report{
		ID:          rec.ID,
		Title:       rec.Title,
		Inspector:   rec.UserName,
		Status:      rec.Status,
		Location:    rec.Location,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		CreatedAt:   rec.CreatedAt,
		SubmittedAt: rec.SubmittedAt,
		GeneratedAt: s.now(),
		Sections:    export.BuildSections(s.catalog, responseRows(responses)),
		Photos:      export.BuildPhotoGroups(s.catalog, imageRows(images)),
	})
}

// UploadPhoto shrinks an image and stores it under temp/<userId>.
func (s *Service) UploadPhoto(ctx context.Context, actor Session, data []byte, mimeType string) (UploadResult, error) {
	if s.blob == nil {
		return UploadResult{}, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Armazenamento de arquivos não configurado", nil)
	}
	if !photo.IsImageType(mimeType) {
		return UploadResult{}, badRequest("INVALID_FILE_TYPE", "Apenas imagens são permitidas")
	}
	limit := s.cfg.UploadMaxBytes
	if limit <= 0 {
		limit = uploadMaxBytes
	}
	if int64(len(data)) > limit {
		return UploadResult{}, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Arquivo muito grande. Máximo 10MB", map[string]any{"maxBytes": limit})
	}

	optimized, err := photo.Optimize(data, s.now())
	if err != nil {
		if errors.Is(err, photo.ErrNotImage) {
			return UploadResult{}, badRequest("INVALID_IMAGE", "Não foi possível processar a imagem")
		}
		return UploadResult{}, err
	}
	stored, err := s.blob.Upload(ctx, optimized.Data, optimized.FileName, "temp/"+actor.UserID, photo.MimeType)
	if err != nil {
		log.WithFields(log.Fields{"user_id": actor.UserID, "file": optimized.FileName}).Errorf("upload photo: %v", err)
		return UploadResult{}, domainError(http.StatusBadGateway, "UPLOAD_FAILED", "Falha ao enviar a imagem", nil)
	}
	log.WithFields(log.Fields{
		"user_id":       actor.UserID,
		"key":           stored.Key,
		"original_size": optimized.OriginalSize,
		"size":          len(optimized.Data),
	}).Debug("photo uploaded")

	return UploadResult{
		URL:          stored.URL,
		Key:          stored.Key,
		FileName:     optimized.FileName,
		Size:         len(optimized.Data),
		OriginalSize: optimized.OriginalSize,
		Width:        optimized.Width,
		Height:       optimized.Height,
	}, nil
}

func (s *Service) indexInspection(rec store.Inspection, responses []checklist.Response) {
	if s.search == nil {
		return
	}
	var notes []string
	for _, row := range responses {
		if row.TextValue != "" {
			notes = append(notes, row.TextValue)
		}
	}
	s.search.IndexInspection(search.InspectionRecord{
		ID:            rec.ID,
		Title:         rec.Title,
		Location:      rec.Location,
		Status:        rec.Status,
		UserID:        rec.UserID,
		InspectorName: rec.UserName,
		Notes:         strings.Join(notes, " "),
		CreatedAt:     rec.CreatedAt.Unix(),
	})
}

func nonCompliances(responses []checklist.Response) []string {
	var out []string
	for _, row := range responses {
		if row.Answer == checklist.AnswerNo {
			out = append(out, fmt.Sprintf("Seção %d: %s", row.SectionNumber, row.QuestionText))
		}
	}
	return out
}

func (s *Service) inspectionEvent(ctx context.Context, rec store.Inspection, responses []checklist.Response) notify.InspectionEvent {
	event := notify.InspectionEvent{
		InspectionID:   rec.ID,
		Title:          rec.Title,
		UserName:       rec.UserName,
		Status:         rec.Status,
		Location:       rec.Location,
		CreatedAt:      rec.CreatedAt,
		SubmittedAt:    rec.SubmittedAt,
		NonCompliances: nonCompliances(responses),
	}
	if owner, err := s.store.GetUserByID(ctx, rec.UserID); err == nil {
		event.UserName = owner.Name
		event.UserEmail = owner.Email
	} else {
		log.Warnf("notify: load owner of %s: %v", rec.ID, err)
	}
	return event
}

func (s *Service) notifySubmitted(rec store.Inspection, responses []checklist.Response) {
	if s.notifier == nil {
		return
	}
	s.async(func() {
		ctx := context.Background()
		event := s.inspectionEvent(ctx, rec, responses)
		if event.UserEmail == "" {
			return
		}
		if err := s.notifier.InspectionSubmitted(ctx, event); err != nil {
			log.Warnf("notify: inspection %s submitted: %v", rec.ID, err)
		}
	})
}

func (s *Service) notifyEdited(rec store.Inspection, responses []checklist.Response, changes []string) {
	if s.notifier == nil {
		return
	}
	s.async(func() {
		ctx := context.Background()
		event := s.inspectionEvent(ctx, rec, responses)
		if err := s.notifier.InspectionEditedAfterSubmit(ctx, event, changes); err != nil {
			log.Warnf("notify: inspection %s edited: %v", rec.ID, err)
		}
	})
}

type slotKey struct {
	section, number int
}

func displayValue(row checklist.Response) string {
	switch {
	case row.TextValue != "":
		return row.TextValue
	case len(row.ListValues) > 0:
		return strings.Join(row.ListValues, ", ")
	default:
		return string(row.Answer)
	}
}

// describeChanges lists per-question differences between the stored rows
// and the replacement, in replacement order followed by removals.
func describeChanges(previous []store.Response, next []checklist.Response) []string {
	before := make(map[slotKey]checklist.Response, len(previous))
	for _, row := range previous {
		before[slotKey{row.SectionNumber, row.QuestionNumber}] = row.Response
	}

	var changes []string
	seen := make(map[slotKey]bool, len(next))
	for _, row := range next {
		key := slotKey{row.SectionNumber, row.QuestionNumber}
		seen[key] = true
		old, ok := before[key]
		switch {
		case !ok:
			changes = append(changes, fmt.Sprintf("Seção %d, %s: adicionada (%s)", row.SectionNumber, row.QuestionText, displayValue(row)))
		case displayValue(old) != displayValue(row):
			changes = append(changes, fmt.Sprintf("Seção %d, %s: %s -> %s", row.SectionNumber, row.QuestionText, displayValue(old), displayValue(row)))
		}
	}
	for _, row := range previous {
		if !seen[slotKey{row.SectionNumber, row.QuestionNumber}] {
			changes = append(changes, fmt.Sprintf("Seção %d, %s: removida", row.SectionNumber, row.QuestionText))
		}
	}
	return changes
}
