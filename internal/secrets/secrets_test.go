package secrets

import (
	"errors"
	"testing"
)

func TestNewEmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty secret key")
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	box, err := New("test-secret-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plain := "sk-live-abc123def456"
	sealed, err := box.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == plain {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := box.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plain {
		t.Fatalf("roundtrip mismatch: got %q want %q", got, plain)
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	box, _ := New("test-secret-key")
	a, _ := box.Encrypt("same value")
	b, _ := box.Encrypt("same value")
	if a == b {
		t.Fatal("two encryptions of the same value produced identical ciphertext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	box1, _ := New("key-one")
	box2, _ := New("key-two")

	sealed, err := box1.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := box2.Decrypt(sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestDecryptGarbage(t *testing.T) {
	box, _ := New("test-secret-key")
	for _, in := range []string{"", "not base64 !!!", "aGVsbG8=", "YQ=="} {
		if _, err := box.Decrypt(in); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("Decrypt(%q): expected ErrDecrypt, got %v", in, err)
		}
	}
}

func TestDecryptTampered(t *testing.T) {
	box, _ := New("test-secret-key")
	sealed, err := box.Encrypt("secret value")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// flip one character of the encoded payload
	tampered := []byte(sealed)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}
	if _, err := box.Decrypt(string(tampered)); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for tampered input, got %v", err)
	}
}
