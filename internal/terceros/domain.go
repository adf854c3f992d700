// Package terceros owns the third parties (customers, suppliers, employees)
// referenced by transactions.
package terceros

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DocumentType enumerates the accepted identity document types.
type DocumentType string

const (
	DocCC  DocumentType = "CC"
	DocCE  DocumentType = "CE"
	DocNIT DocumentType = "NIT"
	DocTI  DocumentType = "TI"
	DocPP  DocumentType = "PP"
	DocRC  DocumentType = "RC"
	DocDE  DocumentType = "DE"
	DocPA  DocumentType = "PA"
)

// ParseDocumentType normalises raw input to a DocumentType.
func ParseDocumentType(raw string) (DocumentType, error) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case DocCC, DocCE, DocNIT, DocTI, DocPP, DocRC, DocDE, DocPA:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q (valid: CC, CE, NIT, TI, PP, RC, DE, PA)", ErrInvalidDocumentType, raw)
}

// Party represents a counterparty.
type Party struct {
	ID             int64
	Name           string
	DocumentType   DocumentType
	DocumentNumber string
	Email          string
	Phone          string
	Address        string
	Active         bool
}

var (
	// ErrPartyNotFound indicates the party id does not resolve.
	ErrPartyNotFound = errors.New("terceros: party not found")
	// ErrDuplicateDocument indicates a document number collision.
	ErrDuplicateDocument = errors.New("terceros: document number already exists")
	// ErrHasTransactions indicates deletion of a party that owns transactions.
	ErrHasTransactions = errors.New("terceros: party has transactions")
	// ErrInvalidDocumentType indicates an unknown document type value.
	ErrInvalidDocumentType = errors.New("terceros: invalid document type")
	// ErrInvalidInput indicates a field constraint violation.
	ErrInvalidInput = errors.New("terceros: invalid input")
)

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]*$`)

// PartyInput groups the fields accepted on create and update.
type PartyInput struct {
	Name           string
	DocumentType   DocumentType
	DocumentNumber string
	Email          string
	Phone          string
	Address        string
}

// Validate ensures the input meets the field constraints.
func (in PartyInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if len(in.Name) > 200 {
		return fmt.Errorf("%w: name exceeds 200 characters", ErrInvalidInput)
	}
	if _, err := ParseDocumentType(string(in.DocumentType)); err != nil {
		return err
	}
	if strings.TrimSpace(in.DocumentNumber) == "" {
		return fmt.Errorf("%w: document number required", ErrInvalidInput)
	}
	if len(in.DocumentNumber) > 20 {
		return fmt.Errorf("%w: document number exceeds 20 characters", ErrInvalidInput)
	}
	if len(in.Email) > 100 {
		return fmt.Errorf("%w: email exceeds 100 characters", ErrInvalidInput)
	}
	if len(in.Phone) > 20 {
		return fmt.Errorf("%w: phone exceeds 20 characters", ErrInvalidInput)
	}
	if !phonePattern.MatchString(in.Phone) {
		return fmt.Errorf("%w: phone has invalid characters", ErrInvalidInput)
	}
	if len(in.Address) > 300 {
		return fmt.Errorf("%w: address exceeds 300 characters", ErrInvalidInput)
	}
	return nil
}
