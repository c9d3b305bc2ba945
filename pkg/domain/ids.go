package domain

import (
	"strconv"
	"strings"

	dErrors "cvl/pkg/domain-errors"
)

// LicenceID is the surrogate key for a licence row. Zero means "not yet persisted".
type LicenceID int64

// ParseLicenceID constructs a LicenceID from external input.
// Errors: returns CodeBadRequest when the value is not a positive integer.
func ParseLicenceID(s string) (LicenceID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "licence id must be a positive integer")
	}
	return LicenceID(n), nil
}

func (l LicenceID) Int64() int64   { return int64(l) }
func (l LicenceID) String() string { return strconv.FormatInt(int64(l), 10) }

// NomisID identifies a person in the prison system (e.g. "A1234BC").
//
// Usage: construct via ParseNomisID at trust boundaries; direct casting
// bypasses validation.
type NomisID string

// ParseNomisID validates the prison-number shape: letter, four digits, two letters.
func ParseNomisID(s string) (NomisID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 7 || !isLetter(s[0]) || !isLetter(s[5]) || !isLetter(s[6]) {
		return "", dErrors.New(dErrors.CodeValidation, "invalid prison number")
	}
	for i := 1; i <= 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", dErrors.New(dErrors.CodeValidation, "invalid prison number")
		}
	}
	return NomisID(s), nil
}

func (n NomisID) String() string { return string(n) }

// CRN identifies a person in the probation system (e.g. "X123456").
type CRN string

// ParseCRN validates the case-reference-number shape: letter followed by six digits.
func ParseCRN(s string) (CRN, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 7 || !isLetter(s[0]) {
		return "", dErrors.New(dErrors.CodeValidation, "invalid CRN")
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", dErrors.New(dErrors.CodeValidation, "invalid CRN")
		}
	}
	return CRN(s), nil
}

func (c CRN) String() string { return string(c) }

// CaseIdentity ties the prison and probation views of one person together.
// A licence always belongs to exactly one CaseIdentity.
type CaseIdentity struct {
	NomisID NomisID
	CRN     CRN
}

// BookingID is the prison system's sentence-booking key.
type BookingID int64

func isLetter(b byte) bool { return b >= 'A' && b <= 'Z' }
