// Package notify posts e-mail requests to an HTTP webhook (a Power Automate
// flow in production) which does the actual delivery.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const origin = "safetycheck"

type Config struct {
	WebhookURL string
	AdminEmail string
	CC         string
	AppURL     string
}

// Payload is the JSON body the webhook expects.
type Payload struct {
	To       string         `json:"to"`
	CC       string         `json:"cc,omitempty"`
	Subject  string         `json:"subject"`
	Body     string         `json:"body"`
	BodyHTML string         `json:"bodyHtml"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Notifier struct {
	cfg  Config
	http *resty.Client
	now  func() time.Time
}

func New(cfg Config) *Notifier {
	c := resty.New().SetTimeout(10 * time.Second)
	return &Notifier{cfg: cfg, http: c, now: time.Now}
}

// Enabled reports whether a webhook URL is configured. Every send is a
// no-op otherwise.
func (n *Notifier) Enabled() bool {
	return n != nil && strings.TrimSpace(n.cfg.WebhookURL) != ""
}

func (n *Notifier) Send(ctx context.Context, payload Payload) error {
	if !n.Enabled() {
		return nil
	}
	if strings.TrimSpace(payload.To) == "" {
		return fmt.Errorf("webhook: missing recipient")
	}
	r, err := n.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(n.cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("webhook: %s; body: %s", r.Status(), abbreviate(r.String(), 500))
	}
	return nil
}

type InspectionEvent struct {
	InspectionID   string
	Title          string
	UserName       string
	UserEmail      string
	Status         string
	Location       string
	CreatedAt      time.Time
	SubmittedAt    *time.Time
	NonCompliances []string
}

func (e InspectionEvent) label() string {
	if strings.TrimSpace(e.Title) != "" {
		return e.Title
	}
	return e.InspectionID
}

// InspectionSubmitted mails the inspector (copying EmailCC) a summary of a
// submitted inspection with its non-compliances.
func (n *Notifier) InspectionSubmitted(ctx context.Context, event InspectionEvent) error {
	lines := []string{
		"Olá,",
		"",
		"Uma nova inspeção de segurança foi registrada no sistema.",
		"",
		"=== DADOS DA INSPEÇÃO ===",
		"Inspeção: " + event.label(),
		fmt.Sprintf("Responsável: %s (%s)", event.UserName, event.UserEmail),
		"Status: " + event.Status,
		"Data de criação: " + formatDate(event.CreatedAt),
	}
	if event.SubmittedAt != nil {
		lines = append(lines, "Data de envio: "+formatDate(*event.SubmittedAt))
	}
	if event.Location != "" {
		lines = append(lines, "Local: "+event.Location)
	}
	lines = append(lines, "")
	if len(event.NonCompliances) > 0 {
		lines = append(lines, "NÃO CONFORMIDADES IDENTIFICADAS:")
		for _, nc := range event.NonCompliances {
			lines = append(lines, "  • "+nc)
		}
		lines = append(lines, "")
	}
	lines = append(lines, "---", "Esta é uma mensagem automática do sistema de inspeções.")

	html, err := render(submittedTemplate, map[string]any{
		"Event":     event,
		"Label":     event.label(),
		"Created":   formatDate(event.CreatedAt),
		"ReviewURL": n.cfg.AppURL + "/inspections/" + event.InspectionID,
	})
	if err != nil {
		return fmt.Errorf("render submitted email: %w", err)
	}
	return n.Send(ctx, Payload{
		To:       event.UserEmail,
		CC:       n.cfg.CC,
		Subject:  "Inspeção de Segurança: " + event.label(),
		Body:     strings.Join(lines, "\r\n"),
		BodyHTML: html,
		Metadata: map[string]any{
			"origem":       origin,
			"type":         "inspection-submitted",
			"inspectionId": event.InspectionID,
			"enviadoEm":    n.now().UTC().Format(time.RFC3339),
		},
	})
}

// InspectionEditedAfterSubmit warns the admin that a submitted inspection
// was changed.
func (n *Notifier) InspectionEditedAfterSubmit(ctx context.Context, event InspectionEvent, changes []string) error {
	if n.cfg.AdminEmail == "" {
		return nil
	}
	editedAt := formatDate(n.now())
	lines := []string{
		"Olá Admin,",
		"",
		fmt.Sprintf("A inspeção %s foi EDITADA após ser enviada.", event.label()),
		"",
		fmt.Sprintf("Usuário: %s (%s)", event.UserName, event.UserEmail),
		"Data da edição: " + editedAt,
		"",
		"Alterações realizadas:",
	}
	for _, change := range changes {
		lines = append(lines, "  • "+change)
	}
	lines = append(lines, "", "Acesse o sistema para revisar as mudanças.")

	html, err := render(editedTemplate, map[string]any{
		"Event":     event,
		"Label":     event.label(),
		"EditedAt":  editedAt,
		"Changes":   changes,
		"ReviewURL": n.cfg.AppURL + "/admin/inspections/" + event.InspectionID,
	})
	if err != nil {
		return fmt.Errorf("render edited email: %w", err)
	}
	return n.Send(ctx, Payload{
		To:       n.cfg.AdminEmail,
		Subject:  fmt.Sprintf("Inspeção %s foi editada após envio", event.label()),
		Body:     strings.Join(lines, "\r\n"),
		BodyHTML: html,
		Metadata: map[string]any{
			"origem":       origin,
			"type":         "edit-notification",
			"inspectionId": event.InspectionID,
		},
	})
}

// NewUserRegistered asks the admin to review a pending account.
func (n *Notifier) NewUserRegistered(ctx context.Context, name, email string) error {
	if n.cfg.AdminEmail == "" {
		return nil
	}
	approvalURL := n.cfg.AppURL + "/admin/users"
	registeredAt := formatDate(n.now())
	lines := []string{
		"Olá Admin,",
		"",
		"Um novo usuário se cadastrou e aguarda aprovação.",
		"",
		"Nome: " + name,
		"E-mail: " + email,
		"Data: " + registeredAt,
		"",
		"Aprovar ou rejeitar: " + approvalURL,
	}
	html, err := render(registeredTemplate, map[string]any{
		"Name":        name,
		"Email":       email,
		"Date":        registeredAt,
		"ApprovalURL": approvalURL,
	})
	if err != nil {
		return fmt.Errorf("render registration email: %w", err)
	}
	return n.Send(ctx, Payload{
		To:       n.cfg.AdminEmail,
		Subject:  "Novo cadastro aguardando aprovação: " + name,
		Body:     strings.Join(lines, "\r\n"),
		BodyHTML: html,
		Metadata: map[string]any{
			"origem": origin,
			"type":   "new_user_registration",
			"email":  email,
		},
	})
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

var submittedTemplate = template.Must(template.New("submitted").Parse(`<!doctype html>
<html lang="pt-BR">
<body style="font-family:Arial,sans-serif;color:#1f1f1f;line-height:1.6;max-width:600px;margin:0 auto;padding:20px">
  <div style="background:#00457c;color:#fff;padding:20px;border-radius:8px 8px 0 0">
    <h1 style="margin:0;font-size:22px">Inspeção de Segurança: {{.Label}}</h1>
  </div>
  <div style="border:1px solid #ddd;border-top:none;padding:20px;border-radius:0 0 8px 8px">
    <p>Uma nova inspeção de segurança foi registrada no sistema.</p>
    <table style="width:100%;border-collapse:collapse;margin:16px 0">
      <tr><td style="padding:8px;border:1px solid #ddd"><strong>Responsável</strong></td><td style="padding:8px;border:1px solid #ddd">{{.Event.UserName}}</td></tr>
      <tr><td style="padding:8px;border:1px solid #ddd"><strong>E-mail</strong></td><td style="padding:8px;border:1px solid #ddd">{{.Event.UserEmail}}</td></tr>
      <tr><td style="padding:8px;border:1px solid #ddd"><strong>Status</strong></td><td style="padding:8px;border:1px solid #ddd">{{.Event.Status}}</td></tr>
      <tr><td style="padding:8px;border:1px solid #ddd"><strong>Data</strong></td><td style="padding:8px;border:1px solid #ddd">{{.Created}}</td></tr>
      {{if .Event.Location}}<tr><td style="padding:8px;border:1px solid #ddd"><strong>Local</strong></td><td style="padding:8px;border:1px solid #ddd">{{.Event.Location}}</td></tr>{{end}}
    </table>
    {{if .Event.NonCompliances}}
    <div style="background:#fee;border-left:4px solid #c00;padding:12px;margin:16px 0">
      <h3 style="margin:0 0 8px 0;color:#c00">Não conformidades identificadas</h3>
      <ul style="margin:0;padding-left:20px">{{range .Event.NonCompliances}}<li>{{.}}</li>{{end}}</ul>
    </div>
    {{end}}
    <p><a href="{{.ReviewURL}}" style="color:#00457c">Abrir inspeção</a></p>
    <hr style="border:none;border-top:1px solid #ddd;margin:24px 0">
    <p style="font-size:12px;color:#666">Esta é uma mensagem automática do sistema de inspeções.</p>
  </div>
</body>
</html>`))

var editedTemplate = template.Must(template.New("edited").Parse(`<!doctype html>
<html lang="pt-BR">
<body style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px">
  <div style="background:#ff9800;color:#fff;padding:20px;border-radius:8px 8px 0 0">
    <h1 style="margin:0">Inspeção editada</h1>
  </div>
  <div style="border:1px solid #ddd;border-top:none;padding:20px">
    <p>A inspeção <strong>{{.Label}}</strong> foi editada após ser enviada.</p>
    <p><strong>Usuário:</strong> {{.Event.UserName}} ({{.Event.UserEmail}})<br>
    <strong>Data:</strong> {{.EditedAt}}</p>
    {{if .Changes}}<h3>Alterações:</h3>
    <ul>{{range .Changes}}<li>{{.}}</li>{{end}}</ul>{{end}}
    <p><a href="{{.ReviewURL}}" style="background:#00457c;color:#fff;padding:10px 20px;text-decoration:none;border-radius:4px;display:inline-block;margin-top:16px">Revisar inspeção</a></p>
  </div>
</body>
</html>`))

var registeredTemplate = template.Must(template.New("registered").Parse(`<!doctype html>
<html lang="pt-BR">
<body style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px">
  <h2>Novo cadastro aguardando aprovação</h2>
  <p><strong>Nome:</strong> {{.Name}}<br>
  <strong>E-mail:</strong> {{.Email}}<br>
  <strong>Data:</strong> {{.Date}}</p>
  <p><a href="{{.ApprovalURL}}" style="background:#00457c;color:#fff;padding:10px 20px;text-decoration:none;border-radius:4px;display:inline-block">Revisar cadastros</a></p>
</body>
</html>`))
