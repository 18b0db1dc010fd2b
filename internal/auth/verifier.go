package auth

import (
	"context"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
)

// Identity is the authenticated teacher.
type Identity struct {
	UID   string
	Email string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// JWTVerifier accepts HS256 tokens minted by Issue.
type JWTVerifier struct {
	Key    string
	Issuer string
}

func (v JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims, err := Parse(token, v.Key, v.Issuer)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UID: claims.Subject, Email: strings.ToLower(claims.Email)}, nil
}

// IDTokenVerifier is the slice of *auth.Client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier checks Firebase ID tokens.
type FirebaseVerifier struct {
	Client IDTokenVerifier
}

func (v FirebaseVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	decoded, err := v.Client.VerifyIDToken(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	email, _ := decoded.Claims["email"].(string)
	return Identity{UID: decoded.UID, Email: strings.ToLower(email)}, nil
}

// Allowlist restricts teacher endpoints to known emails. An empty list allows every
// authenticated user.
type Allowlist map[string]struct{}

func NewAllowlist(emails []string) Allowlist {
	a := make(Allowlist, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			a[e] = struct{}{}
		}
	}
	return a
}

func (a Allowlist) Allows(email string) bool {
	if len(a) == 0 {
		return true
	}
	_, ok := a[strings.ToLower(strings.TrimSpace(email))]
	return ok
}
