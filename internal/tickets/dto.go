package tickets

import (
	"github.com/google/uuid"

	"github.com/bukari-app/bukari-backend/pkg/db/models"
	"github.com/bukari-app/bukari-backend/pkg/enums"
)

// PurchaseRequest is the buyer's order for one event.
type PurchaseRequest struct {
	EventID          uuid.UUID `json:"event_id" validate:"required"`
	Quantity         int       `json:"quantity" validate:"required,min=1,max=10"`
	TicketType       string    `json:"ticket_type,omitempty"`
	PromoCode        *string   `json:"promo_code,omitempty"`
	ExcitementRating *int      `json:"excitement_rating,omitempty" validate:"omitempty,min=1,max=10"`
	Provider         string    `json:"payment_provider" validate:"required"`
	CallbackURL      string    `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// ClaimRequest is the body for a free-event ticket claim.
type ClaimRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=10"`
}

// PaymentInit tells the buyer where to complete the charge.
type PaymentInit struct {
	Provider    enums.PaymentProvider `json:"provider"`
	RedirectURL string                `json:"redirect_url"`
	Reference   string                `json:"reference"`
}

// PurchaseResult pairs the created ticket with its payment handoff.
type PurchaseResult struct {
	Ticket  *models.Ticket `json:"ticket"`
	Payment PaymentInit    `json:"payment"`
}
