package domain

// Kind identifies the attestation family a request belongs to.
type Kind string

const (
	KindPCS Kind = "PCS" // Privacy Credit Score, 0-1000
	KindPRS Kind = "PRS" // Pool Risk Score, 0-100
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k Kind) IsValid() bool {
	return k == KindPCS || k == KindPRS
}
