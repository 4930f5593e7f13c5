package ipfs

import "context"

// Null is the Node used when publication is disabled. Every call fails
// with ErrDisabled, which the publish path treats as a degradation.
type Null struct{}

var _ Node = Null{}

func (Null) Upload(ctx context.Context, data []byte) (string, error) {
	return "", ErrDisabled
}

func (Null) Retrieve(ctx context.Context, cid string) ([]byte, error) {
	return nil, ErrDisabled
}

func (Null) Pin(ctx context.Context, cid string) error {
	return ErrDisabled
}

func (Null) Version(ctx context.Context) (string, error) {
	return "", ErrDisabled
}
