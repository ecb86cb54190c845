// Package notifications defines the operator-facing alerts the shop sends,
// as opposed to the transactional mail jobs customers receive.
package notifications

import (
	"fmt"

	"github.com/tiendalabs/tienda/pkg/notification"
)

// SaleAlert tells the shop operator that a checkout produced a ticket.
type SaleAlert struct {
	Code      string
	Amount    float64
	Purchaser string
}

func (n *SaleAlert) Via() []string { return []string{"mail", "slack"} }

func (n *SaleAlert) ToMail() notification.MailData {
	return notification.MailData{
		Subject: "New sale: " + n.Code,
		Body:    fmt.Sprintf("<h1>Ticket %s</h1><p>%s completed a purchase for $%.2f.</p>", n.Code, n.Purchaser, n.Amount),
		Text:    fmt.Sprintf("Ticket %s: %s completed a purchase for $%.2f.", n.Code, n.Purchaser, n.Amount),
	}
}

func (n *SaleAlert) ToSlack() notification.SlackData {
	return notification.SlackData{
		Text: fmt.Sprintf("New sale %s: $%.2f by %s", n.Code, n.Amount, n.Purchaser),
	}
}
