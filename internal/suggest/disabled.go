package suggest

import (
	"context"
	"errors"
)

// Disabled is used when no API key is configured; every call fails.
type Disabled struct{}

func (Disabled) Suggest(ctx context.Context) (string, error) {
	return "", errors.New("suggestions are not configured")
}
