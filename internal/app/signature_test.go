package app

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"
)

func signFor(t *testing.T, body []byte, secret string) string {
	t.Helper()
	sum := sha1.Sum(append(append([]byte{}, body...), []byte(secret)...))
	return "Signature " + hex.EncodeToString(sum[:])
}

func TestVerify_AcceptsReferenceSignature(t *testing.T) {
	body := []byte(`{"notification_type":"order_paid","order":{"id":"o1"}}`)
	secret := "test-secret-key"
	v := NewSignatureVerifier(secret)

	header := signFor(t, body, secret)
	if !v.Verify(body, header) {
		t.Fatal("expected valid signature to verify")
	}
	// Deterministic across calls.
	if !v.Verify(body, header) {
		t.Fatal("expected verification to be deterministic")
	}
}

func TestVerify_RejectsMutatedBody(t *testing.T) {
	body := []byte(`{"notification_type":"order_paid","order":{"id":"o1"}}`)
	secret := "test-secret-key"
	v := NewSignatureVerifier(secret)
	header := signFor(t, body, secret)

	for i := range body {
		mutated := append([]byte{}, body...)
		mutated[i] ^= 0x01
		if v.Verify(mutated, header) {
			t.Fatalf("expected mutation at byte %d to fail verification", i)
		}
	}
}

func TestVerify_RejectsMutatedSignature(t *testing.T) {
	body := []byte(`{"notification_type":"refund"}`)
	secret := "test-secret-key"
	v := NewSignatureVerifier(secret)
	header := signFor(t, body, secret)

	hexPart := header[len("Signature "):]
	for i := range hexPart {
		flipped := []byte(hexPart)
		if flipped[i] == 'a' {
			flipped[i] = 'b'
		} else {
			flipped[i] = 'a'
		}
		if string(flipped) == hexPart {
			continue
		}
		if v.Verify(body, "Signature "+string(flipped)) {
			t.Fatalf("expected signature mutation at digit %d to fail verification", i)
		}
	}
}

func TestVerify_RejectsMissingOrMalformedHeader(t *testing.T) {
	body := []byte(`{}`)
	v := NewSignatureVerifier("secret")

	cases := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"no prefix", "deadbeef"},
		{"wrong prefix", "Bearer deadbeef"},
		{"truncated digest", "Signature abcd"},
		{"lowercase prefix", "signature " + signFor(t, body, "secret")[len("Signature "):]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if v.Verify(body, tc.header) {
				t.Fatalf("expected header %q to be rejected", tc.header)
			}
		})
	}
}

func TestVerify_RejectsWhenSecretUnset(t *testing.T) {
	body := []byte(`{}`)
	v := NewSignatureVerifier("")
	if v.Verify(body, signFor(t, body, "")) {
		t.Fatal("expected verification to fail with no configured secret")
	}
}
