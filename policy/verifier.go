package policy

import (
	"context"
	"errors"

	"food-order/models"
)

// UserSource loads the current state of an account
type UserSource interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// Verifier authenticates bearer tokens against the live user record, so a role change or a
// removed account takes effect on the next request instead of when the token expires.
type Verifier struct {
	tokens *Tokens
	users  UserSource
}

func NewVerifier(tokens *Tokens, users UserSource) *Verifier {
	return &Verifier{tokens: tokens, users: users}
}

var ErrUnknownUser = errors.New("token subject no longer exists")

func (v *Verifier) Authenticate(ctx context.Context, token string) (Principal, error) {
	claimed, err := v.tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	u, err := v.users.Get(ctx, claimed.UserID)
	if err != nil {
		return Principal{}, errors.Join(ErrUnknownUser, err)
	}
	return NewPrincipal(u.ID, u.Role, u.Email), nil
}
