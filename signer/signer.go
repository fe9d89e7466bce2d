// Package signer implements dal.Signer and dal.Wallet against a
// local RSA private key: the wire format an Arweave-style wallet
// requires, and the one point in the domain stack where the stdlib is
// the format itself rather than a gap to fill.
package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
)

// KeyBits is the modulus size Arweave-format wallets use.
const KeyBits = 4096

// Signer signs canonical message digests with an RSA private key and
// exposes its PKCS#1 public key as owner material.
type Signer struct {
	key *rsa.PrivateKey
}

// Generate creates a fresh signer backed by a new KeyBits-bit RSA key.
// Intended for tests and local development; production deployments load
// a persisted key via LoadPEM.
func Generate() (*Signer, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate signer key: %w", err)
	}
	return &Signer{key: key}, nil
}

// LoadPEM reads a PKCS#1-encoded RSA private key from a PEM file at
// path.
func LoadPEM(path string) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key in %s: %w", path, err)
	}
	return &Signer{key: key}, nil
}

// PublicKey returns the PKCS#1 DER encoding of the public key, the
// owner material attached to every outer data item this signer signs.
func (s *Signer) PublicKey() []byte {
	return x509.MarshalPKCS1PublicKey(&s.key.PublicKey)
}

// Sign computes the SHA-256 digest of message and signs it with PKCS#1
// v1.5 padding, matching the scheme the verifier checks against.
func (s *Signer) Sign(_ context.Context, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return sig, nil
}

// Address returns this signer's wallet address: base64url(SHA-256(n)),
// the same owner-to-address derivation Arweave wallets use.
func (s *Signer) Address() (string, error) {
	n := s.key.PublicKey.N.Bytes()
	sum := sha256.Sum256(n)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
