package models

import dErrors "cvl/pkg/domain-errors"

// LicenceKind is the closed set of licence kinds. Exactly one kind is
// assigned at creation and never changes afterwards; behaviour differences
// between kinds are dispatched by explicit switches on this tag so the state
// machine stays exhaustive and compiler-checkable.
type LicenceKind string

const (
	// KindCRD is a standard conditional-release licence.
	KindCRD LicenceKind = "CRD"
	// KindHDC is a home-detention-curfew licence.
	KindHDC LicenceKind = "HDC"
	// KindPRRD is a post-recall-release licence.
	KindPRRD LicenceKind = "PRRD"
	// KindHardStop is created by the prison when probation ran out of time.
	KindHardStop LicenceKind = "HARD_STOP"
	// KindTimeServed is created outside this service, in the prison system.
	KindTimeServed LicenceKind = "TIME_SERVED"
)

var validKinds = map[LicenceKind]bool{
	KindCRD:        true,
	KindHDC:        true,
	KindPRRD:       true,
	KindHardStop:   true,
	KindTimeServed: true,
}

// ParseLicenceKind constructs a LicenceKind from external input.
func ParseLicenceKind(s string) (LicenceKind, error) {
	k := LicenceKind(s)
	if !validKinds[k] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown licence kind %q", s)
	}
	return k, nil
}

func (k LicenceKind) IsValid() bool  { return validKinds[k] }
func (k LicenceKind) String() string { return string(k) }

// LicenceType classifies the supervision content of a licence: an all-purpose
// (AP) period, a post-sentence-supervision (PSS) period, or both.
type LicenceType string

const (
	TypeAP    LicenceType = "AP"
	TypePSS   LicenceType = "PSS"
	TypeAPPSS LicenceType = "AP_PSS"
)

func (t LicenceType) String() string { return string(t) }
