package crypt

import (
	"testing"
)

func TestCryptConsistency(t *testing.T) {
	for _, pw := range []string{"test", "password", "mypass123"} {
		hash := Crypt(pw, "XX")
		if len(hash) != 13 {
			t.Errorf("expected 13-char hash for %q, got %q", pw, hash)
			continue
		}
		if hash[:2] != "XX" {
			t.Errorf("hash should start with salt, got %q", hash)
		}
	}
}

func TestCheckLegacyPassword(t *testing.T) {
	for _, salt := range []string{"XX", "ab", "..", "//"} {
		hash := Crypt("mushpassword", salt)
		if !IsLegacy(hash) {
			t.Errorf("%q not detected as legacy", hash)
		}
		if !CheckPassword("mushpassword", hash) {
			t.Errorf("failed to verify password with salt %q", salt)
		}
		if CheckPassword("wrongpass", hash) {
			t.Errorf("wrong password accepted with salt %q", salt)
		}
	}
}

func TestBcryptPassword(t *testing.T) {
	hash, err := Hash("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if IsLegacy(hash) {
		t.Errorf("bcrypt hash %q reported as legacy", hash)
	}
	if !CheckPassword("s3cret", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("S3cret", hash) {
		t.Error("wrong password accepted")
	}
	if CheckPassword("", "") || CheckPassword("x", "a") {
		t.Error("empty or short hash accepted")
	}
}
