package homeassistant

import (
	"errors"
	"fmt"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/timeutil"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrNoValue          = errors.New("state has no numeric value")
	ErrCircuitOpen      = errors.New("circuit breaker open")
)

// FetchError describes a failed call to the Home Assistant API. Window is set
// for history chunk requests only.
type FetchError struct {
	Op         string
	EntityID   string
	Window     *models.FetchWindow
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("homeassistant %s %s", e.Op, e.EntityID)
	if e.Window != nil {
		msg += fmt.Sprintf(" [%s, %s]", timeutil.FormatStorage(e.Window.Start), timeutil.FormatStorage(e.Window.End))
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	return msg + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }
