package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password at the default bcrypt cost.
// Only the seed-admin tool and user provisioning write hashes.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// ComparePassword checks a login attempt against a stored hash. A non-nil
// error means the credentials do not match.
func ComparePassword(hashed string, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
