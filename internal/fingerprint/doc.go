// Package fingerprint derives the provenance fingerprint that binds a prompt
// to the image generated from it.
//
// A fingerprint is the lowercase hex SHA-256 digest of the prompt bytes
// immediately followed by the secret bytes, truncated to the configured
// length:
//
//	fp = hex(SHA256(prompt || secret))[:L]
//
// There is no separator between prompt and secret. Fingerprints written by
// earlier deployments used this exact construction and remain verifiable.
//
// The default length is the full digest (64 hex characters), so truncation is
// a no-op. Shorter lengths are accepted for configurability, but a truncated
// fingerprint carries proportionally fewer bits of collision resistance.
//
// # Payload
//
// The watermark payload is the fingerprint expanded to 4 bits per hex
// character, most significant bit first, in character order. See
// [Fingerprint.Payload].
package fingerprint
