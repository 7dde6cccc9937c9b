package leads

import "errors"

var (
	// ErrInvalidRecord is returned when a record is missing its id or email
	ErrInvalidRecord = errors.New("lead record requires id and email")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")
)
