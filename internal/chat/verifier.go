package chat

import "context"

//go:generate go run go.uber.org/mock/mockgen -source=verifier.go -destination=mocks/mock_verifier.go -package=mocks

// TokenVerifier turns a pre-issued identity token into an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
