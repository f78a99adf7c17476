package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(`<html>
<body>
    <h2>Thank you for your order, {{.RecipientName}}!</h2>
    <p>Your order has been confirmed and is being processed.</p>
    <div style="background: #f8f9fa; padding: 20px; border-radius: 10px; margin: 20px 0;">
        <h3>Order Details</h3>
        <p><strong>Order ID:</strong> #{{.OrderID}}</p>
        <p><strong>Total Amount:</strong> ${{.Total.StringFixed 2}}</p>
        <p><strong>Status:</strong> {{.Status}}</p>
        <p><strong>Order Date:</strong> {{.CreatedAt.Format "2006-01-02 15:04 MST"}}</p>
    </div>
    <h3>Order Items:</h3>
    <ul>
    {{- range .Items}}
        <li>{{.Quantity}} x Product #{{.ProductID}}</li>
    {{- end}}
    </ul>
    <p>We'll notify you when your order ships.</p>
</body>
</html>`))

	statusTmpl = template.Must(template.New("status").Parse(`<html>
<body>
    <h2>Order Status Update</h2>
    <p>Hi {{.RecipientName}}, your order status has been updated.</p>
    <div style="background: #e8f4fd; padding: 20px; border-radius: 10px; margin: 20px 0;">
        <h3>Order #{{.OrderID}}</h3>
        <p><strong>Previous Status:</strong> {{.OldStatus}}</p>
        <p><strong>New Status:</strong> <span style="color: #1890ff; font-weight: bold;">{{.NewStatus}}</span></p>
        <p><strong>Total:</strong> ${{.Total.StringFixed 2}}</p>
    </div>
    <p>You can view your order details in your account.</p>
</body>
</html>`))
)

// EmailSink renders order confirmation and status update mails.
type EmailSink struct {
	sender EmailSender
}

func NewEmailSink(sender EmailSender) *EmailSink {
	return &EmailSink{sender: sender}
}

func (s *EmailSink) Send(ctx context.Context, event Event) error {
	var (
		to      string
		subject string
		tmpl    *template.Template
	)

	switch e := event.(type) {
	case OrderCreated:
		to, subject, tmpl = e.RecipientEmail, fmt.Sprintf("Order Confirmation #%d", e.OrderID), confirmationTmpl
	case OrderStatusChanged:
		to, subject, tmpl = e.RecipientEmail, fmt.Sprintf("Order #%d Status Updated", e.OrderID), statusTmpl
	default:
		return fmt.Errorf("no email template for %s", event.EventType())
	}

	if to == "" {
		return fmt.Errorf("%s for order %s has no recipient", event.EventType(), event.Key())
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, event); err != nil {
		return fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}

	return s.sender.SendEmail(ctx, to, subject, body.String())
}

type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPSender(host, port, username, password, from string) (*SMTPSender, error) {
	if host == "" {
		return nil, fmt.Errorf("SMTP_HOST not set")
	}
	if port == "" {
		return nil, fmt.Errorf("SMTP_PORT not set")
	}
	if from == "" {
		from = username
	}
	return &SMTPSender{host: host, port: port, username: username, password: password, from: from}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := []byte(
		"From: " + s.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			htmlBody,
	)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.host, s.port))
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	// The SMTP client has no context support, so the whole exchange runs
	// under the ctx deadline and a cancellation closes the connection.
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("smtp deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := s.deliver(conn, to, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp send failed: %w", ctxErr)
		}
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func (s *SMTPSender) deliver(conn net.Conn, to string, msg []byte) error {
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return err
		}
	}
	if s.username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return err
		}
	}
	if err := c.Mail(s.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
