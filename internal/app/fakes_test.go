package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"safetycheck/api/internal/authpw"
	"safetycheck/api/internal/checklist"
	"safetycheck/api/internal/config"
	"safetycheck/api/internal/export"
	"safetycheck/api/internal/notify"
	"safetycheck/api/internal/store"
)

var errInjected = errors.New("injected failure")

// memStore keeps everything in maps. WithinTx stages writes on copies and
// swaps them in only when fn succeeds.
type memStore struct {
	mu          sync.Mutex
	users       map[string]store.User
	inspections map[string]store.Inspection
	responses   map[string][]store.Response
	images      map[string][]store.Image
	logs        map[string][]store.AuditLogEntry
	refresh     map[string]string
	revoked     map[string]bool
	patches     []store.InspectionPatch
	failOn      string
	nextID      int64
	pingErr     error
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[string]store.User),
		inspections: make(map[string]store.Inspection),
		responses:   make(map[string][]store.Response),
		images:      make(map[string][]store.Image),
		logs:        make(map[string][]store.AuditLogEntry),
		refresh:     make(map[string]string),
		revoked:     make(map[string]bool),
	}
}

func (m *memStore) addUser(id, name, role string) store.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := store.User{ID: id, Name: name, Email: id + "@example.com", Role: role, CreatedAt: time.Now()}
	m.users[id] = user
	return user
}

func (m *memStore) addInspection(rec store.Inspection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inspections[rec.ID] = rec
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) ListUsers(_ context.Context, role string) ([]store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]store.User, 0)
	for _, user := range m.users {
		if role == "" || user.Role == role {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *memStore) updateUser(id string, fn func(*store.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	fn(&user)
	m.users[id] = user
	return nil
}

func (m *memStore) ApproveUser(_ context.Context, id, approver string) error {
	return m.updateUser(id, func(u *store.User) {
		now := time.Now()
		u.Role = "USER"
		u.ApprovedBy = &approver
		u.ApprovedAt = &now
		u.RejectedAt = nil
		u.RejectionReason = ""
	})
}

func (m *memStore) RejectUser(_ context.Context, id, approver, reason string) error {
	return m.updateUser(id, func(u *store.User) {
		now := time.Now()
		u.Role = "PENDING"
		u.RejectedBy = &approver
		u.RejectedAt = &now
		u.RejectionReason = reason
	})
}

func (m *memStore) SetUserRole(_ context.Context, id, role string) error {
	return m.updateUser(id, func(u *store.User) { u.Role = role })
}

func (m *memStore) GetInspection(_ context.Context, id string) (store.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.inspections[id]
	if !ok {
		return store.Inspection{}, sql.ErrNoRows
	}
	if user, ok := m.users[rec.UserID]; ok {
		rec.UserName = user.Name
	}
	return rec, nil
}

func (m *memStore) ListInspections(_ context.Context, filter store.InspectionFilter) ([]store.Inspection, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []store.Inspection
	for _, rec := range m.inspections {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(rec.Title), strings.ToLower(filter.Query)) {
			continue
		}
		rec.ResponseCount = len(m.responses[rec.ID])
		rec.ImageCount = len(m.images[rec.ID])
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (m *memStore) ListResponses(_ context.Context, id string) ([]store.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := slices.Clone(m.responses[id])
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SectionNumber != rows[j].SectionNumber {
			return rows[i].SectionNumber < rows[j].SectionNumber
		}
		return rows[i].QuestionNumber < rows[j].QuestionNumber
	})
	return rows, nil
}

func (m *memStore) ListImages(_ context.Context, id string) ([]store.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.images[id]), nil
}

func (m *memStore) ListAuditLog(_ context.Context, id string) ([]store.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.logs[id]), nil
}

func (m *memStore) PatchInspection(_ context.Context, id string, patch store.InspectionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.inspections[id]
	if !ok {
		return sql.ErrNoRows
	}
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.Location != nil {
		rec.Location = *patch.Location
	}
	if patch.Latitude != nil {
		rec.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		rec.Longitude = patch.Longitude
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	m.inspections[id] = rec
	m.patches = append(m.patches, patch)
	return nil
}

func (m *memStore) DeleteInspection(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inspections[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.inspections, id)
	delete(m.responses, id)
	delete(m.images, id)
	delete(m.logs, id)
	return nil
}

func (m *memStore) CountUsers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memStore) CountImages(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, rows := range m.images {
		total += len(rows)
	}
	return total, nil
}

func (m *memStore) CountInspections(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, rec := range m.inspections {
		if since.IsZero() || !rec.CreatedAt.Before(since) {
			total++
		}
	}
	return total, nil
}

func (m *memStore) InspectionsByStatus(context.Context) ([]store.StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, rec := range m.inspections {
		counts[rec.Status]++
	}
	out := make([]store.StatusCount, 0, len(counts))
	for _, status := range slices.Sorted(maps.Keys(counts)) {
		out = append(out, store.StatusCount{Status: status, Count: counts[status]})
	}
	return out, nil
}

func (m *memStore) TopInspectors(_ context.Context, limit int) ([]store.InspectorCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, rec := range m.inspections {
		counts[rec.UserID]++
	}
	out := make([]store.InspectorCount, 0, len(counts))
	for userID, count := range counts {
		user := m.users[userID]
		out = append(out, store.InspectorCount{UserID: userID, Name: user.Name, Email: user.Email, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[tokenHash] = userID
	return nil
}

func (m *memStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.refresh[tokenHash]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return store.User{ID: userID}, nil
}

func (m *memStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenHash)
	return nil
}

func (m *memStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = true
	return nil
}

func (m *memStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[jti], nil
}

type memTx struct {
	store       *memStore
	inspections map[string]store.Inspection
	responses   map[string][]store.Response
	images      map[string][]store.Image
	logs        map[string][]store.AuditLogEntry
}

func (m *memStore) WithinTx(ctx context.Context, _ store.TxBounds, fn func(context.Context, store.Writer) error) error {
	m.mu.Lock()
	tx := &memTx{
		store:       m,
		inspections: maps.Clone(m.inspections),
		responses:   maps.Clone(m.responses),
		images:      maps.Clone(m.images),
		logs:        maps.Clone(m.logs),
	}
	m.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inspections = tx.inspections
	m.responses = tx.responses
	m.images = tx.images
	m.logs = tx.logs
	return nil
}

func (tx *memTx) fail(op string) error {
	if tx.store.failOn == op {
		return fmt.Errorf("%s: %w", strings.ToLower(op), errInjected)
	}
	return nil
}

func (tx *memTx) InsertInspection(_ context.Context, rec store.Inspection) error {
	if err := tx.fail("InsertInspection"); err != nil {
		return err
	}
	if _, exists := tx.inspections[rec.ID]; exists {
		return store.ErrConflict
	}
	rec.UserName = ""
	tx.inspections[rec.ID] = rec
	return nil
}

func (tx *memTx) UpdateInspection(_ context.Context, rec store.Inspection) error {
	if err := tx.fail("UpdateInspection"); err != nil {
		return err
	}
	if _, exists := tx.inspections[rec.ID]; !exists {
		return sql.ErrNoRows
	}
	rec.UserName = ""
	tx.inspections[rec.ID] = rec
	return nil
}

func (tx *memTx) DeleteResponses(_ context.Context, id string) error {
	if err := tx.fail("DeleteResponses"); err != nil {
		return err
	}
	delete(tx.responses, id)
	return nil
}

func (tx *memTx) InsertResponses(_ context.Context, id string, responses []checklist.Response) error {
	if err := tx.fail("InsertResponses"); err != nil {
		return err
	}
	rows := slices.Clone(tx.responses[id])
	for _, response := range responses {
		for _, existing := range rows {
			if existing.SectionNumber == response.SectionNumber && existing.QuestionNumber == response.QuestionNumber {
				return store.ErrConflict
			}
		}
		tx.store.nextID++
		rows = append(rows, store.Response{ID: tx.store.nextID, InspectionID: id, Response: response})
	}
	tx.responses[id] = rows
	return nil
}

func (tx *memTx) DeleteImages(_ context.Context, id string) error {
	if err := tx.fail("DeleteImages"); err != nil {
		return err
	}
	delete(tx.images, id)
	return nil
}

func (tx *memTx) InsertImages(_ context.Context, id string, images []checklist.Image) error {
	if err := tx.fail("InsertImages"); err != nil {
		return err
	}
	rows := slices.Clone(tx.images[id])
	for i, image := range images {
		tx.store.nextID++
		rows = append(rows, store.Image{ID: tx.store.nextID, InspectionID: id, Image: image, SortOrder: i})
	}
	tx.images[id] = rows
	return nil
}

func (tx *memTx) InsertAuditLog(_ context.Context, entry store.AuditLogEntry) error {
	if err := tx.fail("InsertAuditLog"); err != nil {
		return err
	}
	tx.store.nextID++
	entry.ID = tx.store.nextID
	tx.logs[entry.InspectionID] = append(slices.Clone(tx.logs[entry.InspectionID]), entry)
	return nil
}

type fakeAuth struct {
	registerFn func(authpw.RegisterRequest) (store.User, error)
	signInFn   func(email, password string) (store.User, error)
	resetToken string
	resetUser  store.User
	resetErr   error
	resetReq   authpw.ResetPasswordRequest
}

func (f *fakeAuth) Register(_ context.Context, req authpw.RegisterRequest) (store.User, error) {
	if f.registerFn == nil {
		return store.User{}, errors.New("register not configured")
	}
	return f.registerFn(req)
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (store.User, error) {
	if f.signInFn == nil {
		return store.User{}, authpw.ErrInvalidCredentials
	}
	return f.signInFn(email, password)
}

func (f *fakeAuth) RequestPasswordReset(context.Context, string) (string, store.User, error) {
	return f.resetToken, f.resetUser, nil
}

func (f *fakeAuth) ResetPassword(_ context.Context, req authpw.ResetPasswordRequest) error {
	f.resetReq = req
	return f.resetErr
}

type fakeNotifier struct {
	mu         sync.Mutex
	submitted  []notify.InspectionEvent
	edited     []notify.InspectionEvent
	changes    [][]string
	registered []string
}

func (f *fakeNotifier) InspectionSubmitted(_ context.Context, event notify.InspectionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, event)
	return nil
}

func (f *fakeNotifier) InspectionEditedAfterSubmit(_ context.Context, event notify.InspectionEvent, changes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, event)
	f.changes = append(f.changes, changes)
	return nil
}

func (f *fakeNotifier) NewUserRegistered(_ context.Context, name, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, name+" <"+email+">")
	return nil
}

type fakeMailer struct {
	configured bool
	resets     []string
	approved   []string
	rejected   []string
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }

func (f *fakeMailer) SendPasswordResetEmail(to, _, resetURL string) error {
	f.resets = append(f.resets, to+" "+resetURL)
	return nil
}

func (f *fakeMailer) SendAccountApprovedEmail(to, _, _ string) error {
	f.approved = append(f.approved, to)
	return nil
}

func (f *fakeMailer) SendAccountRejectedEmail(to, _, reason string) error {
	f.rejected = append(f.rejected, to+": "+reason)
	return nil
}

type fakePDF struct {
	report export.Report
}

func (f *fakePDF) InspectionPDF(_ context.Context, report export.Report) (*export.Result, error) {
	f.report = report
	return &export.Result{Data: []byte("%PDF-1.4 fake"), Filename: "relatorio.pdf", MimeType: "application/pdf"}, nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "test-secret",
		AccessTTL:      time.Hour,
		RefreshTTL:     24 * time.Hour,
		AppURL:         "https://app.example.com",
		UploadMaxBytes: 10 << 20,
		TxMaxWait:      10 * time.Second,
		TxTimeout:      15 * time.Second,
	}
}

type testEnv struct {
	store    *memStore
	auth     *fakeAuth
	notifier *fakeNotifier
	mailer   *fakeMailer
	service  *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newMemStore(),
		auth:     &fakeAuth{},
		notifier: &fakeNotifier{},
		mailer:   &fakeMailer{},
	}
	env.service = New(testConfig(), Deps{
		Store:    env.store,
		Auth:     env.auth,
		Notifier: env.notifier,
		Mailer:   env.mailer,
	})
	env.service.async = func(fn func()) { fn() }
	return env
}

func actor(id, role string) Session {
	return Session{UserID: id, UserName: "Nome " + id, Role: role}
}

// fullSubmission answers every question except skip, so that every
// conditional branch is open.
func fullSubmission(status string, skip ...string) *checklist.Submission {
	sub := checklist.NewSubmission()
	sub.Status = status
	sub.Title = "Obra Rua das Flores"
	for _, q := range checklist.Default.Questions() {
		if slices.Contains(skip, q.Key) {
			continue
		}
		section := sub.EnsureSection(q.Section)
		switch q.Kind {
		case checklist.KindChoice:
			section.Set(q.Key, checklist.String("YES"))
		case checklist.KindFreeText:
			if q.Numeric {
				section.Set(q.Key, checklist.Number(1.5))
			} else {
				section.Set(q.Key, checklist.String("texto "+q.Key))
			}
		case checklist.KindPhotoArray:
			section.Set(q.Key, checklist.List{"https://files.example.com/" + q.Key + "/1.jpg"})
		}
	}
	return sub
}
