package domain

import (
	"fmt"
)

// UltrasoundStatus tags an UltrasoundFinding. The zero value is UltrasoundNotProvided.
type UltrasoundStatus int

const (
	UltrasoundNotProvided UltrasoundStatus = iota
	UltrasoundNegative
	UltrasoundPositive
)

// String returns the wire name of the status.
func (s UltrasoundStatus) String() string {
	switch s {
	case UltrasoundNotProvided:
		return "not_provided"
	case UltrasoundNegative:
		return "negative"
	case UltrasoundPositive:
		return "positive"
	default:
		return fmt.Sprintf("UltrasoundStatus(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s UltrasoundStatus) MarshalText() ([]byte, error) {
	switch s {
	case UltrasoundNotProvided, UltrasoundNegative, UltrasoundPositive:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown ultrasound status %d", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string decodes to
// UltrasoundNotProvided.
func (s *UltrasoundStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "not_provided":
		*s = UltrasoundNotProvided
	case "negative":
		*s = UltrasoundNegative
	case "positive":
		*s = UltrasoundPositive
	default:
		return NewValidationError("ultrasound.status", "must be one of positive, negative, not_provided", string(text))
	}
	return nil
}

// UltrasoundFinding is the optional output of an external ultrasound analysis.
// A negative scan and a missing scan are different evidence and are never merged.
type UltrasoundFinding struct {
	Status         UltrasoundStatus `json:"status"`
	FollicleCount  int              `json:"follicle_count,omitempty"`
	VolumeEstimate string           `json:"volume_estimate,omitempty"`
}

// PositiveUltrasound returns a finding showing polycystic morphology.
func PositiveUltrasound(follicleCount int, volumeEstimate string) UltrasoundFinding {
	return UltrasoundFinding{
		Status:         UltrasoundPositive,
		FollicleCount:  follicleCount,
		VolumeEstimate: volumeEstimate,
	}
}

// NegativeUltrasound returns a finding for a scan without polycystic morphology.
func NegativeUltrasound() UltrasoundFinding {
	return UltrasoundFinding{Status: UltrasoundNegative}
}

// NoUltrasound returns the finding used when no scan was supplied.
func NoUltrasound() UltrasoundFinding {
	return UltrasoundFinding{}
}

// IsPositive reports whether the finding satisfies the morphology criterion.
func (u UltrasoundFinding) IsPositive() bool {
	return u.Status == UltrasoundPositive
}

// Validate rejects findings that cannot come from a real scan.
func (u UltrasoundFinding) Validate() error {
	switch u.Status {
	case UltrasoundNotProvided, UltrasoundNegative:
		return nil
	case UltrasoundPositive:
		if u.FollicleCount < 0 {
			return NewValidationError("ultrasound.follicle_count", "must not be negative", u.FollicleCount)
		}
		return nil
	default:
		return NewValidationError("ultrasound.status", "unknown status", int(u.Status))
	}
}
