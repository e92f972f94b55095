package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/models"
)

type Sender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(host string, port int, username, password, from string, logger *zap.Logger) *Sender {
	return &Sender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		logger:   logger,
		send:     smtp.SendMail,
	}
}

const applicationTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px; }
        .header { background-color: #2e7d32; color: white; padding: 10px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { padding: 20px; }
        td { padding: 4px 12px 4px 0; vertical-align: top; }
        .footer { margin-top: 20px; font-size: 0.8em; color: #777; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>New application</h1>
        </div>
        <div class="content">
            <p>Hi {{.OwnerName}},</p>
            <p>Someone applied for <strong>{{.RoomTitle}}</strong>.</p>
            <table>
                <tr><td>Name</td><td>{{.App.FullName}}</td></tr>
                <tr><td>Email</td><td>{{.App.Email}}</td></tr>
                {{if .App.Phone}}<tr><td>Phone</td><td>{{.App.Phone}}</td></tr>{{end}}
                <tr><td>Course</td><td>{{.App.Course}}</td></tr>
                <tr><td>Age</td><td>{{.App.Age}}</td></tr>
                {{if .App.Message}}<tr><td>Message</td><td>{{.App.Message}}</td></tr>{{end}}
            </table>
        </div>
        <div class="footer">
            <p>You receive this because you listed the room on Roomlet.</p>
        </div>
    </div>
</body>
</html>
`

var headerSafe = strings.NewReplacer("\r", " ", "\n", " ")

var applicationEmail = template.Must(template.New("application").Parse(applicationTemplate))

type applicationView struct {
	OwnerName string
	RoomTitle string
	App       applicationFields
}

type applicationFields struct {
	FullName string
	Email    string
	Phone    string
	Course   string
	Age      int
	Message  string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ApplicationCreated mails the room owner a summary of the application.
func (s *Sender) ApplicationCreated(ctx context.Context, room *models.Room, app *models.Application) error {
	if room.OwnerEmail == "" {
		return fmt.Errorf("room %d has no owner address", room.ID)
	}

	var body bytes.Buffer
	err := applicationEmail.Execute(&body, applicationView{
		OwnerName: room.OwnerName,
		RoomTitle: room.Title,
		App: applicationFields{
			FullName: app.FullName,
			Email:    app.Email,
			Phone:    deref(app.Phone),
			Course:   app.Course,
			Age:      app.Age,
			Message:  deref(app.Message),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	subject := "New application for " + headerSafe.Replace(room.Title)
	return s.deliver(ctx, room.OwnerEmail, subject, body.String())
}

func (s *Sender) deliver(ctx context.Context, to, subject, body string) error {
	// Email headers, in a fixed order
	headers := [][2]string{
		{"From", s.From},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=\"UTF-8\""},
	}
	var message strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&message, "%s: %s\r\n", h[0], h[1])
	}
	message.WriteString("\r\n" + body)

	// Without a host the message is only logged
	if s.Host == "" {
		s.logger.Info("email not sent, smtp disabled",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	// smtp.SendMail takes no context; run it aside so ctx still bounds the caller
	done := make(chan error, 1)
	go func() {
		done <- s.send(addr, auth, s.From, []string{to}, []byte(message.String()))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
