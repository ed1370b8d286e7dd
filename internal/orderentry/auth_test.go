package orderentry

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "dGVzdC1zZWNyZXQta2V5LW1hdGVyaWFs" // base64("test-secret-key-material")

func TestNewAuthRequiresAllFields(t *testing.T) {
	t.Parallel()
	_, err := NewAuth("", testSecret, "pass")
	assert.Error(t, err)
	_, err = NewAuth("key", "", "pass")
	assert.Error(t, err)
	_, err = NewAuth("key", testSecret, "")
	assert.Error(t, err)
	_, err = NewAuth("key", "not-base64!!!", "pass")
	assert.Error(t, err)

	_, err = NewAuth("key", testSecret, "pass")
	assert.NoError(t, err)
}

func TestHeadersShape(t *testing.T) {
	t.Parallel()
	auth, err := NewAuth("my-key", testSecret, "my-pass")
	require.NoError(t, err)

	headers := auth.Headers("POST", "/orders", `{"size":"1"}`)
	assert.Equal(t, "my-key", headers["CB-ACCESS-KEY"])
	assert.Equal(t, "my-pass", headers["CB-ACCESS-PASSPHRASE"])

	ts, err := strconv.ParseInt(headers["CB-ACCESS-TIMESTAMP"], 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), ts, 5)

	sig, err := base64.StdEncoding.DecodeString(headers["CB-ACCESS-SIGN"])
	require.NoError(t, err)
	assert.Len(t, sig, sha256.Size)

	// The signature commits to timestamp+method+path+body under the decoded secret.
	secret, _ := base64.StdEncoding.DecodeString(testSecret)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(headers["CB-ACCESS-TIMESTAMP"] + "POST" + "/orders" + `{"size":"1"}`))
	assert.Equal(t, mac.Sum(nil), sig)
}

func TestHeadersVaryWithPath(t *testing.T) {
	t.Parallel()
	auth, err := NewAuth("key", testSecret, "pass")
	require.NoError(t, err)

	a := auth.sign("1700000000", "GET", "/orders", "")
	b := auth.sign("1700000000", "GET", "/fills", "")
	c := auth.sign("1700000000", "GET", "/orders", "")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}
