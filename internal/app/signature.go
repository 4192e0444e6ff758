/**
 * @description
 * This file implements webhook signature verification for Xsolla
 * notifications. Xsolla signs each delivery with
 * "Signature " + hex(sha1(rawBody + secret)) in the Authorization header.
 * Verification is a function of the exact bytes received on the wire, so the
 * handler must call Verify before any JSON parsing takes place.
 *
 * @dependencies
 * - crypto/sha1: Dictated by the Xsolla webhook protocol.
 * - crypto/subtle: Constant-time comparison to avoid timing side-channels.
 */
package app

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "Signature "

// SignatureVerifier authenticates inbound webhook bodies against the shared
// webhook secret.
type SignatureVerifier struct {
	secret string
}

// NewSignatureVerifier creates a verifier bound to the given shared secret.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

// Verify reports whether header is a valid signature over rawBody. It returns
// false on a missing or malformed header and never panics; a request that
// fails here must be rejected before its payload is parsed.
func (v *SignatureVerifier) Verify(rawBody []byte, header string) bool {
	if v.secret == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	provided := header[len(signaturePrefix):]

	sum := sha1.New()
	sum.Write(rawBody)
	sum.Write([]byte(v.secret))
	expected := hex.EncodeToString(sum.Sum(nil))

	if len(provided) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
