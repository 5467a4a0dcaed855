// Package crypt hashes and verifies player passwords. New passwords are
// stored as bcrypt hashes; 13-character DES crypt(3) hashes from imported
// TinyMUSH databases still verify and can be upgraded on login.
package crypt

import (
	"strings"

	descrypt "github.com/digitive/crypt"
	"golang.org/x/crypto/bcrypt"
)

// Crypt performs traditional Unix DES crypt(3).
func Crypt(password, salt string) string {
	result, err := descrypt.Crypt(password, salt)
	if err != nil {
		return ""
	}
	return result
}

// Hash returns a bcrypt hash of password.
func Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// IsLegacy reports whether stored is a DES crypt hash.
func IsLegacy(stored string) bool {
	return stored != "" && !strings.HasPrefix(stored, "$2")
}

// CheckPassword verifies password against a bcrypt or DES hash.
func CheckPassword(password, stored string) bool {
	if !IsLegacy(stored) {
		return stored != "" && bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	if len(stored) < 2 {
		return false
	}
	computed := Crypt(password, stored[:2])
	return computed != "" && computed == stored
}
