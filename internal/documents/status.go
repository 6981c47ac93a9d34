// Package documents holds the vocabulary shared by the quote and contract
// lifecycle engines: document statuses and the lazy expiry evaluation.
package documents

// Status is the lifecycle state of a customer-facing sales document.
//
// Quotes use draft → sent → (approved | expired), approved → converted.
// Contracts use draft → sent → (signed | expired).
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusApproved  Status = "approved"
	StatusSigned    Status = "signed"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
)

// Terminal reports whether no further status-changing operation may succeed.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusSigned, StatusExpired, StatusConverted:
		return true
	}
	return false
}
