package history

import "github.com/google/uuid"

// IDProvider issues identifiers for applications and status events.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// ValidID reports whether raw looks like an identifier issued by NewUUIDProvider.
func ValidID(raw string) bool {
	_, err := uuid.Parse(raw)
	return err == nil
}
