package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/socket-playground-demo/domain/identity"
)

// AuthPort defines the interface for handshake authentication.
// This is the port that other modules use to validate tokens.
type AuthPort interface {
	ValidateToken(ctx context.Context, token string) (identity.Identity, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// ValidateToken validates a handshake token and returns the decoded identity.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (identity.Identity, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"validate-token",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return identity.Identity{}, fmt.Errorf("validate-token request failed: %w", err)
	}

	if !resp.Valid {
		return identity.Identity{}, fmt.Errorf("token validation failed: %s", resp.Error)
	}

	return identity.Identity{
		ID:        resp.UserID,
		Email:     resp.Email,
		FirstName: resp.FirstName,
		LastName:  resp.LastName,
	}, nil
}
