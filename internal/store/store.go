package store

// TokenKey is the fixed name the session credential is stored under.
const TokenKey = "token"

// TokenStore defines durable client-side storage for credentials.
type TokenStore interface {
	// LoadToken returns "" with a nil error when nothing is stored under name.
	LoadToken(name string) (string, error)
	SaveToken(name, token string) error
	DeleteToken(name string) error

	Close() error
}
