package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const keyIterations = 10000
const keyLength = 32

var keySalt = []byte("card-number-cipher")

// CardCipher encrypts card numbers for storage and produces the masked
// display form. The key comes from configuration through the
// constructor; the ledger core never decrypts card numbers itself.
type CardCipher struct {
	aead cipher.AEAD
}

func NewCardCipher(secret string) (*CardCipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("card number secret is required")
	}

	key := pbkdf2.Key([]byte(secret), keySalt, keyIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create card cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create card cipher: %w", err)
	}

	return &CardCipher{aead: aead}, nil
}

func (c *CardCipher) Encrypt(cardNumber string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encrypt card number: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(cardNumber), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *CardCipher) Decrypt(encryptedCardNumber string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encryptedCardNumber)
	if err != nil {
		return "", fmt.Errorf("decrypt card number: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errors.New("decrypt card number: ciphertext too short")
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt card number: %w", err)
	}

	return string(plain), nil
}

// Mask renders the display form of a card number, keeping only the
// last four digits: "**** **** **** 1234".
func Mask(cardNumber string) string {
	clean := strings.ReplaceAll(strings.ReplaceAll(cardNumber, " ", ""), "-", "")
	if len(clean) < 4 {
		return "****"
	}
	return "**** **** **** " + clean[len(clean)-4:]
}
