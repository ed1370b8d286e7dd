// Package orderentry implements the venue's private REST API: order
// submission and cancellation, open orders, fills, and account balances.
// It sits outside the feed core; strategies correlate its order ids with the
// maker/taker ids carried on feed trades.
package orderentry

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Auth signs private requests with the venue's API key triplet. The
// signature is base64(HMAC-SHA256(timestamp + method + path + body)) keyed
// with the base64-decoded secret.
type Auth struct {
	key        string
	secret     []byte
	passphrase string
}

// NewAuth validates and decodes the credential triplet.
func NewAuth(key, secret, passphrase string) (*Auth, error) {
	if key == "" || secret == "" || passphrase == "" {
		return nil, fmt.Errorf("api key, secret and passphrase are all required")
	}
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode api secret: %w", err)
	}
	return &Auth{key: key, secret: decoded, passphrase: passphrase}, nil
}

// Headers returns the signed auth headers for one request. requestPath must
// include the query string when present.
func (a *Auth) Headers(method, requestPath, body string) map[string]string {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	return map[string]string{
		"CB-ACCESS-KEY":        a.key,
		"CB-ACCESS-SIGN":       a.sign(timestamp, method, requestPath, body),
		"CB-ACCESS-TIMESTAMP":  timestamp,
		"CB-ACCESS-PASSPHRASE": a.passphrase,
	}
}

func (a *Auth) sign(timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
