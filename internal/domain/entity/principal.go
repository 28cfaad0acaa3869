package entity

import "fmt"

// PrincipalKind is a closed enum of caller identities. Role strings from the
// auth token are parsed once at the transport edge; everything below works
// with the tagged kind.
type PrincipalKind int

const (
	KindUser PrincipalKind = iota
	KindVendor
	KindAdmin
)

func (k PrincipalKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindVendor:
		return "vendor"
	case KindAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParsePrincipalKind converts an auth role string into a PrincipalKind
func ParsePrincipalKind(role string) (PrincipalKind, error) {
	switch role {
	case "user":
		return KindUser, nil
	case "vendor":
		return KindVendor, nil
	case "admin":
		return KindAdmin, nil
	default:
		return 0, fmt.Errorf("unknown principal role %q", role)
	}
}

// Principal is an authenticated caller
type Principal struct {
	ID   string
	Kind PrincipalKind
}
