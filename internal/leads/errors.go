package leads

import "errors"

var (
	// ErrTermsNotAccepted blocks lead submission until the caller has accepted
	// the terms and conditions.
	ErrTermsNotAccepted = errors.New("leads: terms and conditions not accepted")

	// ErrPastBookingTime rejects a direct booking scheduled before now.
	ErrPastBookingTime = errors.New("leads: booking time is in the past")

	// ErrMissingServiceContext means no service descriptor was captured from
	// the flow backend, so category-dependent payloads cannot be built.
	ErrMissingServiceContext = errors.New("leads: service context not captured")
)
