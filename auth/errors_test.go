package auth

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{ErrMissingCredentials, ErrKeyNotFound, ErrSigningFailed, ErrUnknownProvider, ErrInvalidProvider} {
		if !strings.HasPrefix(err.Error(), "auth: ") {
			t.Errorf("%q lacks the auth: prefix", err)
		}
		if !errors.Is(fmt.Errorf("wrap: %w", err), err) {
			t.Errorf("wrapped %q does not match", err)
		}
	}
}
