package errlog

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Categories used for records.
const (
	CategoryBooking    = "booking"
	CategoryPayment    = "payment"
	CategoryNetwork    = "network"
	CategoryValidation = "validation"
	CategoryUncaught   = "uncaught"
	CategoryGeneral    = "general"
)

// Record is one logged error or event.
type Record struct {
	ID       string            `json:"id"`
	Time     time.Time         `json:"time"`
	Level    string            `json:"level"`
	Category string            `json:"category"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	Stack    string            `json:"stack,omitempty"`
}

func newRecord(now time.Time, level zerolog.Level, category, msg string, fields map[string]string) Record {
	if category == "" {
		category = CategoryGeneral
	}
	return Record{
		ID:       uuid.NewString(),
		Time:     now.UTC(),
		Level:    level.String(),
		Category: category,
		Message:  msg,
		Fields:   fields,
	}
}

// IsError reports whether r was logged at error level or above.
func (r Record) IsError() bool {
	lvl, err := zerolog.ParseLevel(r.Level)
	return err == nil && lvl >= zerolog.ErrorLevel && lvl <= zerolog.PanicLevel
}
