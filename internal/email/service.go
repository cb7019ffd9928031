// Package email sends account mail (password reset, approval decisions)
// over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

const appName = "Inspeções de Segurança"

var ErrNotConfigured = errors.New("email not configured")

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured reports whether host, port and sender are all set.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName == "" {
		return s.config.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
}

// SendHTML sends a multipart/alternative message with a plain-text part and
// an HTML part.
func (s *Service) SendHTML(to []string, subject, text, html string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return fmt.Errorf("send email: no recipients")
	}
	msg := buildMessage(s.fromHeader(), to, subject, text, html)
	if err := s.send(s.server, s.auth, s.config.From, to, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

const boundary = "safetycheck-alt"

func buildMessage(from string, to []string, subject, text, html string) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", text)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", html)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

type PasswordResetData struct {
	AppName  string
	UserName string
	ResetURL string
}

type AccountDecisionData struct {
	AppName  string
	UserName string
	LoginURL string
	Reason   string
}

func (s *Service) SendPasswordResetEmail(to, userName, resetURL string) error {
	data := PasswordResetData{AppName: appName, UserName: userName, ResetURL: resetURL}
	html, err := renderTemplate(passwordResetTemplate, data)
	if err != nil {
		return fmt.Errorf("render password reset template: %w", err)
	}
	text := fmt.Sprintf("Olá %s,\n\nPara redefinir sua senha acesse:\n%s\n\nO link expira em 1 hora.", userName, resetURL)
	return s.SendHTML([]string{to}, "Redefinição de senha - "+appName, text, html)
}

func (s *Service) SendAccountApprovedEmail(to, userName, loginURL string) error {
	data := AccountDecisionData{AppName: appName, UserName: userName, LoginURL: loginURL}
	html, err := renderTemplate(accountApprovedTemplate, data)
	if err != nil {
		return fmt.Errorf("render account approved template: %w", err)
	}
	text := fmt.Sprintf("Olá %s,\n\nSeu acesso foi aprovado. Entre em:\n%s", userName, loginURL)
	return s.SendHTML([]string{to}, "Acesso aprovado - "+appName, text, html)
}

func (s *Service) SendAccountRejectedEmail(to, userName, reason string) error {
	data := AccountDecisionData{AppName: appName, UserName: userName, Reason: reason}
	html, err := renderTemplate(accountRejectedTemplate, data)
	if err != nil {
		return fmt.Errorf("render account rejected template: %w", err)
	}
	text := fmt.Sprintf("Olá %s,\n\nSeu pedido de acesso não foi aprovado.\nMotivo: %s", userName, reason)
	return s.SendHTML([]string{to}, "Acesso negado - "+appName, text, html)
}

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const layoutHead = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, Helvetica, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 3px solid #00457c; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #00457c; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #00457c; }
        .warning { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
`

var passwordResetTemplate = template.Must(template.New("password_reset").Parse(layoutHead + `
    <h2>Redefinição de senha</h2>
    <p>Olá {{.UserName}},</p>
    <p>Recebemos um pedido para redefinir a sua senha. Clique no botão abaixo para criar uma nova senha:</p>
    <p><a href="{{.ResetURL}}" class="button">Redefinir senha</a></p>
    <p>Ou copie e cole este link no navegador:</p>
    <p class="link">{{.ResetURL}}</p>
    <div class="warning"><strong>Importante:</strong> este link expira em 1 hora.</div>
    <div class="footer"><p>Se você não pediu a redefinição, ignore este e-mail. Sua senha continua a mesma.</p></div>
</body>
</html>`))

var accountApprovedTemplate = template.Must(template.New("account_approved").Parse(layoutHead + `
    <h2>Acesso aprovado</h2>
    <p>Olá {{.UserName}},</p>
    <p>Seu cadastro foi aprovado por um administrador. Você já pode registrar inspeções.</p>
    <p><a href="{{.LoginURL}}" class="button">Entrar</a></p>
</body>
</html>`))

var accountRejectedTemplate = template.Must(template.New("account_rejected").Parse(layoutHead + `
    <h2>Acesso negado</h2>
    <p>Olá {{.UserName}},</p>
    <p>Seu pedido de acesso não foi aprovado.</p>
    {{if .Reason}}<p><strong>Motivo:</strong> {{.Reason}}</p>{{end}}
    <div class="footer"><p>Em caso de dúvida, procure a equipe de Segurança do Trabalho.</p></div>
</body>
</html>`))
