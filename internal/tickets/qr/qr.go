package qr

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// Generator mints and verifies the bearer tokens printed on tickets.
// A token is nonce.mac where the mac binds the nonce to one ticket id
// under the server secret, so tokens cannot be guessed or moved
// between tickets.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// NewToken issues a fresh token for a ticket.
func (g *Generator) NewToken(ticketID string) (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate token nonce: %w", err)
	}
	mac := g.sign(ticketID, nonce)
	return base64.RawURLEncoding.EncodeToString(nonce) + "." +
		base64.RawURLEncoding.EncodeToString(mac), nil
}

// Verify checks that a token was minted for the given ticket.
func (g *Generator) Verify(ticketID, token string) bool {
	nonceStr, macStr, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	nonce, err := base64.RawURLEncoding.DecodeString(nonceStr)
	if err != nil {
		return false
	}
	mac, err := base64.RawURLEncoding.DecodeString(macStr)
	if err != nil {
		return false
	}
	return hmac.Equal(mac, g.sign(ticketID, nonce))
}

func (g *Generator) sign(ticketID string, nonce []byte) []byte {
	h := hmac.New(sha256.New, g.secret)
	h.Write([]byte(ticketID))
	h.Write(nonce)
	return h.Sum(nil)
}

// EncodePNG renders a token as a scannable QR image.
func (g *Generator) EncodePNG(token string) ([]byte, error) {
	return qrcode.Encode(token, qrcode.Medium, 256)
}
