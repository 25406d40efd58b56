// Package ordernum renders human-readable order numbers of the form
// CCCC-YYMMDD-SSSS (customer code, creation date, global sequence).
package ordernum

import (
	"fmt"
	"strings"
	"time"

	"github.com/jogardn/roastery-orders/pkg/models"
)

const fallbackIDLength = 8

// Format renders the order number. The date is taken in loc; a nil loc
// means time.Local. Both numeric fields are zero-padded to four digits and
// widen rather than truncate.
func Format(sequence int64, createdAt time.Time, customerCode *int, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	code := 0
	if customerCode != nil {
		code = *customerCode
	}
	t := createdAt.In(loc)
	return fmt.Sprintf("%04d-%02d%02d%02d-%04d", code, t.Year()%100, int(t.Month()), t.Day(), sequence)
}

// FormatISO is Format for an RFC 3339 creation timestamp.
func FormatISO(sequence int64, createdAt string, customerCode *int, loc *time.Location) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return "", fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return Format(sequence, t, customerCode, loc), nil
}

// ShortID is the display used for orders that never received a sequence number.
func ShortID(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) > fallbackIDLength {
		compact = compact[len(compact)-fallbackIDLength:]
	}
	return strings.ToUpper(compact)
}

// Display picks the formatter variant for an order.
func Display(order *models.Order, loc *time.Location) string {
	if order.SequenceNumber <= 0 {
		return ShortID(order.ID)
	}
	return Format(order.SequenceNumber, order.CreatedAt, order.CustomerCode, loc)
}
