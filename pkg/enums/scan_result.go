package enums

// ScanResult classifies the outcome of a gate-side ticket check.
type ScanResult string

const (
	ScanResultAdmit       ScanResult = "valid"
	ScanResultAlreadyUsed ScanResult = "already_used"
	ScanResultInvalid     ScanResult = "invalid"
)

// String implements fmt.Stringer.
func (s ScanResult) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ScanResult.
func (s ScanResult) IsValid() bool {
	switch s {
	case ScanResultAdmit, ScanResultAlreadyUsed, ScanResultInvalid:
		return true
	}
	return false
}
