// Package credentials provides the primitive credential operations: password
// hashing, TOTP second-factor codes and opaque API tokens.
package credentials

import "golang.org/x/crypto/bcrypt"

// bcryptCost is the work factor for password hashes. 12 keeps offline brute
// force expensive while staying under ~250ms per verification.
const bcryptCost = 12

// HashPassword returns a salted adaptive hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. The underlying
// comparison is constant-time.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
