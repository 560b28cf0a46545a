package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader は webhook の署名ヘッダ。
const SignatureHeader = "X-Signature"

var (
	ErrSignatureMissing  = errors.New("payment: signature missing")
	ErrSignatureMismatch = errors.New("payment: signature mismatch")
)

// Signer は生のリクエストボディに対する HMAC-SHA256 署名（16進）を扱う。
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(body []byte) string {
	return hex.EncodeToString(s.compute(body))
}

// Verify は "sha256=" 接頭辞つきのヘッダも受け付ける。
func (s *Signer) Verify(body []byte, header string) error {
	value := strings.TrimSpace(header)
	value = strings.TrimPrefix(value, "sha256=")
	if value == "" {
		return ErrSignatureMissing
	}
	if len(s.secret) == 0 {
		return ErrSignatureMismatch
	}

	got, err := hex.DecodeString(value)
	if err != nil {
		return ErrSignatureMismatch
	}
	if !hmac.Equal(got, s.compute(body)) {
		return ErrSignatureMismatch
	}
	return nil
}

func (s *Signer) compute(body []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}
