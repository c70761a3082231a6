package keys

import "fmt"

// Relationship is the functional role a key plays in the DID document. The
// enumeration is closed; every switch over it must handle all four variants.
type Relationship int

const (
	Authentication Relationship = iota
	AssertionMethod
	KeyAgreement
	// CapabilityDelegation is reachable in the protocol but the attester does
	// not provision a delegation key; signing with it always fails.
	CapabilityDelegation
)

func (r Relationship) String() string {
	switch r {
	case Authentication:
		return "authentication"
	case AssertionMethod:
		return "assertionMethod"
	case KeyAgreement:
		return "keyAgreement"
	case CapabilityDelegation:
		return "capabilityDelegation"
	default:
		return fmt.Sprintf("Relationship(%d)", int(r))
	}
}

// ParseRelationship constructs a Relationship from external input.
func ParseRelationship(s string) (Relationship, error) {
	switch s {
	case "authentication":
		return Authentication, nil
	case "assertionMethod":
		return AssertionMethod, nil
	case "keyAgreement":
		return KeyAgreement, nil
	case "capabilityDelegation":
		return CapabilityDelegation, nil
	default:
		return 0, fmt.Errorf("unknown key relationship %q", s)
	}
}
