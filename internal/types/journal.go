package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
)

// EventType names a journaled order lifecycle transition.
type EventType string

const (
	EventSubmit      EventType = "SUBMIT"
	EventFill        EventType = "FILL"
	EventPartialFill EventType = "PARTIAL_FILL"
	EventCancel      EventType = "CANCEL"
	EventExpire      EventType = "EXPIRE"
	EventReject      EventType = "REJECT"
	EventSkip        EventType = "SKIP"
	EventStateLost   EventType = "STATE_LOST"
)

// JournalEvent is one row of the trade journal.
type JournalEvent struct {
	Timestamp    time.Time                        `json:"ts_utc" validate:"required"`
	Event        EventType                        `json:"event" validate:"required,oneof=SUBMIT FILL PARTIAL_FILL CANCEL EXPIRE REJECT SKIP STATE_LOST"`
	InstrumentID string                           `json:"instrument_id" validate:"required"`
	Ticker       string                           `json:"ticker"`
	Side         Side                             `json:"side" validate:"omitempty,oneof=BUY SELL"`
	Lots         optional.Option[int64]           `json:"lots"`
	Price        optional.Option[decimal.Decimal] `json:"price"`
	OrderID      string                           `json:"order_id"`
	ClientUID    string                           `json:"client_uid"`
	Status       string                           `json:"status"`
	Reason       string                           `json:"reason"`
	Meta         map[string]string                `json:"meta"`
}

// Validate validates the JournalEvent struct.
func (e *JournalEvent) Validate() error {
	validate := validator.New()
	if err := validate.Struct(e); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid journal event", err)
	}

	return nil
}
