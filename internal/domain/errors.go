package domain

import "fmt"

// ProviderError is returned by connector operations when the provider
// answers with a non-2xx status.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: unexpected status %d: %s", e.Status, e.Message)
}

// AuthError signals missing or unusable credentials: no configured client,
// no refresh token, or a rejected grant. It fails a pass before any item is
// processed.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Reason
}
