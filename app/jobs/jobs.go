// Package jobs defines the background jobs dispatched onto the queue.
// Every job type is registered by name in RegisterAll so the workers can
// deserialize it from its envelope.
package jobs

import (
	"fmt"

	"github.com/tiendalabs/tienda/pkg/mail"
	"github.com/tiendalabs/tienda/pkg/queue"
)

// RegisterAll registers every job type with the queue. Call once at boot.
func RegisterAll() {
	queue.Register("*jobs.PasswordResetMail", func() queue.Job { return &PasswordResetMail{} })
	queue.Register("*jobs.TicketReceiptMail", func() queue.Job { return &TicketReceiptMail{} })
}

// PasswordResetMail delivers the reset link for a requested password reset.
type PasswordResetMail struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	ResetURL string `json:"reset_url"`
}

func (j *PasswordResetMail) Handle() error {
	body := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>We received a request to reset your password. The link below is valid for one hour and can be used once:</p>
<p><a href="%s">Reset your password</a></p>
<p>If you did not request this, you can ignore this email.</p>`,
		j.Name, j.ResetURL,
	)
	return mail.To(j.Email).
		Subject("Reset your password").
		Body(body).
		Send()
}

// TicketReceiptMail delivers the purchase receipt after a checkout.
type TicketReceiptMail struct {
	Email  string  `json:"email"`
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

func (j *TicketReceiptMail) Handle() error {
	body := fmt.Sprintf(
		`<p>Thanks for your purchase!</p>
<p>Ticket <strong>%s</strong> — total <strong>%.2f</strong>.</p>
<p>Keep this code as your receipt.</p>`,
		j.Code, j.Amount,
	)
	return mail.To(j.Email).
		Subject(fmt.Sprintf("Your purchase receipt %s", j.Code)).
		Body(body).
		Send()
}
