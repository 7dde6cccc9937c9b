package leads

import (
	"time"

	"github.com/google/uuid"
)

// SourceWebchat tags records captured by the chat lead flow.
const SourceWebchat = "webchat"

// Record is the immutable snapshot of a captured lead handed to notification sinks.
// It is passed by value and never mutated after NewRecord returns.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Company   string    `json:"company"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact carries the contact fields a record is built from.
type Contact struct {
	Name    string
	Email   string
	Phone   string
	Company string
}

// NewRecord snapshots the contact plus free-text message at the current UTC time.
func NewRecord(contact Contact, message, source string) Record {
	if source == "" {
		source = SourceWebchat
	}
	return Record{
		ID:        uuid.NewString(),
		Name:      contact.Name,
		Email:     contact.Email,
		Phone:     contact.Phone,
		Company:   contact.Company,
		Message:   message,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// CreatedAtISO renders the creation time as ISO-8601 UTC, e.g. 2026-01-02T15:04:05Z.
func (r Record) CreatedAtISO() string {
	return r.CreatedAt.UTC().Format(time.RFC3339)
}

// Fields flattens the record into the string mapping sinks serialise.
func (r Record) Fields() map[string]string {
	return map[string]string{
		"id":         r.ID,
		"name":       r.Name,
		"email":      r.Email,
		"phone":      r.Phone,
		"company":    r.Company,
		"message":    r.Message,
		"source":     r.Source,
		"created_at": r.CreatedAtISO(),
	}
}

// ListFilter pages through stored records.
type ListFilter struct {
	Limit  int
	Offset int
	Source string
}
