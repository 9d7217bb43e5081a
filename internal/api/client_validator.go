package api

import (
	"context"

	"github.com/Checker-Finance/serasa-adapter/internal/serasa"
)

// ResolverValidator implements ClientValidator by attempting to resolve the client's
// Serasa credentials. If resolution succeeds the client is considered known.
type ResolverValidator struct {
	resolver serasa.CredentialsResolver
}

func NewResolverValidator(resolver serasa.CredentialsResolver) *ResolverValidator {
	return &ResolverValidator{resolver: resolver}
}

func (v *ResolverValidator) IsKnownClient(ctx context.Context, clientID string) bool {
	_, err := v.resolver.Resolve(ctx, clientID)
	return err == nil
}
