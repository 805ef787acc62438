package fetch

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Envelope layout: magic(6) + salt(16) + nonce(12) + ciphertext||tag.
// The key is derived from the order password with PBKDF2-SHA256.
const envelopeMagic = "DPENC1"

const (
	saltLen       = 16
	nonceLen      = 12
	pbkdf2Rounds  = 100000
	pbkdf2KeyLen  = 32
	envelopeMinSz = len(envelopeMagic) + saltLen + nonceLen + 16
)

// IsEnvelope reports whether data carries the at-rest encryption envelope.
func IsEnvelope(data []byte) bool {
	return len(data) >= envelopeMinSz && bytes.HasPrefix(data, []byte(envelopeMagic))
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Rounds, pbkdf2KeyLen, sha256.New)
}

// Decrypt opens an envelope with the order password. A wrong password fails
// authentication rather than yielding garbage.
func Decrypt(data []byte, password string) ([]byte, error) {
	if !IsEnvelope(data) {
		return nil, fmt.Errorf("not an encrypted envelope")
	}
	off := len(envelopeMagic)
	salt := data[off : off+saltLen]
	nonce := data[off+saltLen : off+saltLen+nonceLen]
	ciphertext := data[off+saltLen+nonceLen:]

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("envelope authentication failed: %w", err)
	}
	return plain, nil
}

// Encrypt seals plaintext into an envelope. Used by ingestion tooling and
// tests; the analysis path only ever decrypts.
func Encrypt(plain []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	out := make([]byte, 0, envelopeMinSz+len(plain))
	out = append(out, envelopeMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plain, nil)
	return out, nil
}
