package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PASSWORD HASHING:
// Passwords are stored as bcrypt hashes. bcrypt salts every hash and has a
// tunable work factor ("cost"): each +1 doubles the time to compute a hash,
// for us and for anyone brute-forcing a leaked table.
//
//	cost 4  → ~1ms   (tests only)
//	cost 12 → ~250ms (default)
//
// The salt and cost are encoded inside the hash string itself:
//
//	$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW
//	 │  │  └─ 22 char salt + 31 char hash
//	 │  └─ cost
//	 └─ algorithm version

// MaxPasswordBytes is bcrypt's input limit. Longer inputs are rejected rather
// than silently truncated.
const MaxPasswordBytes = 72

// PasswordService hashes and verifies passwords.
type PasswordService struct {
	cost int

	// dummyHash is compared against when the account does not exist, so a
	// failed login costs the same whether or not the email is registered.
	dummyHash []byte
}

// NewPasswordService returns a PasswordService using the given bcrypt cost.
// Costs outside bcrypt's range fall back to bcrypt.DefaultCost.
func NewPasswordService(cost int) (*PasswordService, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("vegfuel-timing-equalizer"), cost)
	if err != nil {
		return nil, fmt.Errorf("auth: preparing dummy hash: %w", err)
	}
	return &PasswordService{cost: cost, dummyHash: dummy}, nil
}

// NewPasswordServiceForTest returns a PasswordService with the minimum cost.
// Exported so other packages' tests can build fast services.
func NewPasswordServiceForTest() *PasswordService {
	ps, err := NewPasswordService(bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return ps
}

// Hash returns the bcrypt hash of plaintext.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A malformed or empty hash
// never matches; it is not an error.
func (p *PasswordService) Verify(plaintext, hash string) bool {
	if hash == "" {
		p.Equalize(plaintext)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Equalize burns the same CPU as a real Verify. Call it on paths that
// would otherwise return early, such as an unknown email.
func (p *PasswordService) Equalize(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(plaintext))
}
