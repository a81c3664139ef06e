package tickets

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
)

// NewTicketCode builds the human readable ticket code printed on the
// ticket: BUKR-<4 digits>-<first 8 of the event id>.
func NewTicketCode(eventID uuid.UUID) string {
	var buf [2]byte
	_, _ = rand.Read(buf[:])
	short := binary.BigEndian.Uint16(buf[:]) % 10000
	return fmt.Sprintf("BUKR-%04d-%s", short, eventID.String()[:8])
}

// NewPaymentRef builds the payment reference the gateways and webhooks key
// on: BUKR-PAY-<unix seconds>-<6 hex>.
func NewPaymentRef(now time.Time) string {
	var buf [3]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("BUKR-PAY-%d-%s", now.Unix(), hex.EncodeToString(buf[:]))
}

type qrPayload struct {
	TicketID string `json:"ticketId"`
	EventID  string `json:"eventId"`
}

// NewQRPayload encodes the scan payload embedded in the ticket QR code.
func NewQRPayload(ticketCode string, eventID uuid.UUID) string {
	data, _ := json.Marshal(qrPayload{TicketID: ticketCode, EventID: eventID.String()})
	return string(data)
}

// ParseQRPayload extracts the ticket code from a scanned QR payload.
func ParseQRPayload(raw string) (string, error) {
	var payload qrPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed qr payload")
	}
	if payload.TicketID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "qr payload missing ticketId")
	}
	return payload.TicketID, nil
}
