package sanitize

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestIsSafeRejectsInjectionFragments(t *testing.T) {
	s := New()
	unsafe := []string{
		"Robert'); DROP TABLE cuentas;--",
		"<script>alert(1)</script>",
		"1 UNION SELECT password FROM users",
		"javascript:alert(document.cookie)",
		"x onerror=alert(1)",
	}
	for _, input := range unsafe {
		if s.IsSafe(input) {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestIsSafeAcceptsOrdinaryText(t *testing.T) {
	s := New()
	safe := []string{
		"",
		"Distribuidora Pérez y Cía",
		"Calle 45 # 12-34, Bogotá",
		"contacto@empresa.co",
	}
	for _, input := range safe {
		if !s.IsSafe(input) {
			t.Fatalf("expected %q to be accepted", input)
		}
	}
}

func TestSanitizeStripsMarkup(t *testing.T) {
	s := New()
	got := s.Sanitize("  <b>Almacén</b> <script>alert(1)</script>Central  ")
	if strings.Contains(got, "<") || strings.Contains(got, "script") {
		t.Fatalf("markup survived: %q", got)
	}
	if !strings.Contains(got, "Almacén") || !strings.Contains(got, "Central") {
		t.Fatalf("legitimate text lost: %q", got)
	}
}

func TestCipherRoundTrip(t *testing.T) {
	key := hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	const secret = "900123456-7"
	sealed, err := c.Encrypt(secret)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if sealed == secret {
		t.Fatal("ciphertext equals plaintext")
	}
	opened, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if opened != secret {
		t.Fatalf("round trip mismatch: %q", opened)
	}

	again, err := c.Encrypt(secret)
	if err != nil {
		t.Fatalf("second encrypt: %v", err)
	}
	if again == sealed {
		t.Fatal("nonce reuse: identical ciphertexts")
	}
}

func TestCipherRejectsTamperedCiphertext(t *testing.T) {
	key := hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	sealed, err := c.Encrypt("dato reservado")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tampered := []byte(sealed)
	tampered[len(tampered)-1] ^= 1
	if _, err := c.Decrypt(string(tampered)); !errors.Is(err, ErrCiphertextInvalid) {
		t.Fatalf("expected ErrCiphertextInvalid, got %v", err)
	}
	if _, err := c.Decrypt("deadbeef"); !errors.Is(err, ErrCiphertextInvalid) {
		t.Fatalf("short ciphertext must fail, got %v", err)
	}
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	if _, err := NewCipher("not-hex"); err == nil {
		t.Fatal("expected error for non-hex key")
	}
	if _, err := NewCipher(hex.EncodeToString([]byte("short"))); err == nil {
		t.Fatal("expected error for short key")
	}
}
