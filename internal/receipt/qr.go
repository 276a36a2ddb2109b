// Package receipt issues tamper-proof receipts for completed reviews. A receipt is an
// encrypted token, rendered as a QR code that links to the public verify endpoint.
package receipt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-reviews/internal/models"
)

var ErrInvalidToken = fmt.Errorf("invalid receipt token: %w", models.ErrInvalid)

// Claims identify the review a receipt vouches for.
type Claims struct {
	OrderID     string    `json:"order_id"`
	ReviewerID  string    `json:"reviewer_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// ClaimsFor builds the claims of a completed order.
func ClaimsFor(order *models.Order) (Claims, error) {
	if order.Status != models.OrderStatusCompleted {
		return Claims{}, fmt.Errorf("order %s is %s: %w", order.ID, order.Status, models.ErrConflict)
	}
	return Claims{OrderID: order.ID, ReviewerID: order.ReviewerID, CompletedAt: order.CompletedAt.UTC()}, nil
}

type Generator struct {
	aead      cipher.AEAD
	verifyURL string
	size      int
}

// NewGenerator derives the AES-256 key from secret. verifyURL is the page the QR
// code points at; the token is appended as ?token=.
func NewGenerator(secret, verifyURL string) (*Generator, error) {
	if secret == "" {
		return nil, errors.New("receipt secret is empty")
	}
	if _, err := url.Parse(verifyURL); err != nil {
		return nil, fmt.Errorf("receipt verify url: %w", err)
	}

	key := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Generator{aead: aead, verifyURL: verifyURL, size: 256}, nil
}

func (g *Generator) Token(c Claims) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := g.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Parse authenticates and decrypts a token.
func (g *Generator) Parse(token string) (Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < g.aead.NonceSize() {
		return Claims{}, ErrInvalidToken
	}

	nonce, sealed := raw[:g.aead.NonceSize()], raw[g.aead.NonceSize():]
	data, err := g.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var c Claims
	if err := json.Unmarshal(data, &c); err != nil || c.OrderID == "" {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

// VerifyLink is the URL encoded into the QR code.
func (g *Generator) VerifyLink(token string) string {
	return g.verifyURL + "?token=" + url.QueryEscape(token)
}

// QR renders a PNG QR code of the verify link for c.
func (g *Generator) QR(c Claims) ([]byte, error) {
	token, err := g.Token(c)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(g.VerifyLink(token), qrcode.Medium, g.size)
}
