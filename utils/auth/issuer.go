package auth

import (
	"context"
	"time"

	"github.com/enigmarium/backend/model"
	"github.com/enigmarium/backend/utils/crypto"
)

// IssuedCredential is what the caller delivers to the client: the signed
// token goes into the access_token cookie, the nonce is echoed through the
// X-Xsrf-Token header, out-of-band from the credential itself.
type IssuedCredential struct {
	Token     string
	XSRFToken string
	Deadline  time.Time
	Remember  bool
}

// TokenIssuer mints signed session credentials and persists their shadow
// records in the ledger
type TokenIssuer struct {
	jwtManager *JWTManager
	ledger     *TokenLedger
}

// NewTokenIssuer creates a new token issuer
func NewTokenIssuer(jwtManager *JWTManager, ledger *TokenLedger) *TokenIssuer {
	return &TokenIssuer{
		jwtManager: jwtManager,
		ledger:     ledger,
	}
}

// Issue mints a credential for the user with a fresh anti-forgery nonce and
// records it in the ledger. Lifetime is 7 days when remember is set, 12
// hours otherwise.
func (i *TokenIssuer) Issue(ctx context.Context, user *model.User, remember bool) (*IssuedCredential, error) {
	nonce, err := crypto.NewNonce()
	if err != nil {
		return nil, err
	}

	token, deadline, err := i.jwtManager.SignCredential(user.ID, user.Name, nonce, remember)
	if err != nil {
		return nil, err
	}

	if err := i.ledger.Record(ctx, user.ID, token, deadline); err != nil {
		return nil, err
	}

	return &IssuedCredential{
		Token:     token,
		XSRFToken: nonce,
		Deadline:  deadline,
		Remember:  remember,
	}, nil
}
