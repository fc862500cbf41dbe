package auth

import "golang.org/x/crypto/bcrypt"

// Hasher hashes and checks secrets with bcrypt.
type Hasher struct {
	Cost int
}

func NewHasher() *Hasher {
	return &Hasher{Cost: bcrypt.DefaultCost}
}

func (h *Hasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether secret matches hash. A malformed hash never matches.
func (h *Hasher) Verify(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
