package auth

import "golang.org/x/crypto/bcrypt"

// HashIssuerKey hashes the shared key of the upstream login system.
func HashIssuerKey(key string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyIssuerKey checks a presented key against its hash.
func VerifyIssuerKey(hashed, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(key))
}
