// Package identity validates tokens issued by an external identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"vizintel/api/internal/common"
)

// Identity is what the provider asserts about the token holder.
type Identity struct {
	Email string
	Name  string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type tokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier checks Google ID tokens against the OAuth client id.
type GoogleVerifier struct {
	clientID  string
	validator tokenValidator
}

func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	validator, err := idtoken.NewValidator(ctx, option.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("google validator: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, validator: validator}, nil
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, common.ErrInvalidExternalToken
	}
	payload, err := v.validator.Validate(ctx, token, v.clientID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidExternalToken, err)
	}
	return identityFromClaims(payload.Claims)
}

func identityFromClaims(claims map[string]interface{}) (Identity, error) {
	email, _ := claims["email"].(string)
	if email == "" {
		return Identity{}, fmt.Errorf("%w: missing email claim", common.ErrInvalidExternalToken)
	}
	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		return Identity{}, fmt.Errorf("%w: email not verified", common.ErrInvalidExternalToken)
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return Identity{Email: email, Name: name}, nil
}

// Disabled rejects every token. Used when no client id is configured.
type Disabled struct{}

var errProviderDisabled = errors.New("external identity provider not configured")

func (Disabled) Verify(context.Context, string) (Identity, error) {
	return Identity{}, fmt.Errorf("%w: %v", common.ErrUpstream, errProviderDisabled)
}
