package auth

// PasswordHasher turns plaintext passwords into self-describing hashes and
// checks candidates against them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}
