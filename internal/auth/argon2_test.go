package auth

import (
	"strings"
	"testing"
)

func TestHashArgon2_Format(t *testing.T) {
	t.Parallel()

	hash, err := hashArgon2("correct horse battery", argon2Time, argon2Memory, argon2Threads)
	if err != nil {
		t.Fatalf("hashArgon2 failed: %v", err)
	}

	// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("Hash should have 6 parts, got: %d", len(parts))
	}
	if parts[1] != "argon2id" {
		t.Errorf("Expected argon2id algorithm, got: %s", parts[1])
	}
	if parts[2] != "v=19" {
		t.Errorf("Expected v=19, got: %s", parts[2])
	}
	if parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("Expected m=65536,t=3,p=4, got: %s", parts[3])
	}
}

func TestVerifyPassword_UsesEmbeddedParameters(t *testing.T) {
	t.Parallel()

	hash, err := hashArgon2("pw1", 1, 8*1024, 1)
	if err != nil {
		t.Fatalf("hashArgon2 failed: %v", err)
	}

	match, err := VerifyPassword("pw1", hash)
	if err != nil || !match {
		t.Errorf("VerifyPassword = %v, %v; want true, nil", match, err)
	}

	match, err = VerifyPassword("pw2", hash)
	if err != nil {
		t.Fatalf("VerifyPassword should not return error for wrong password: %v", err)
	}
	if match {
		t.Error("Wrong password should not match")
	}
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hash    string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"wrong format", "not-a-hash", ErrInvalidHash},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=4$salt$hash", ErrInvalidHash},
		{"missing parts", "$argon2id$v=19$m=65536", ErrInvalidHash},
		{"zero cost", "$argon2id$v=19$m=0,t=0,p=0$c29tZXNhbHQ$c29tZWhhc2g", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=8192,t=1,p=1$!!!$c29tZWhhc2g", ErrInvalidHash},
		{"wrong version", "$argon2id$v=18$m=65536,t=3,p=4$c29tZXNhbHRoZXJl$c29tZWhhc2hoZXJl", ErrIncompatibleVersion},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			match, err := VerifyPassword("password", tt.hash)
			if err != tt.wantErr {
				t.Errorf("VerifyPassword with %q error = %v, want %v", tt.name, err, tt.wantErr)
			}
			if match {
				t.Error("malformed hash must not match")
			}
		})
	}
}
