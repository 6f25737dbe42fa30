// Package initdata signs and verifies Telegram Mini-App init data.
//
// The data-check-string is every field except hash, formatted as key=value,
// sorted by key and joined with newlines. The signing key is
// HMAC-SHA256("WebAppData", botToken) and the hash is the hex encoded
// HMAC-SHA256 of the data-check-string under that key.
package initdata

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	smokeerrors "github.com/savaki/apismoke/internal/errors"
)

const (
	// AuthScheme prefixes init data in the Authorization header.
	AuthScheme = "tma"

	secretKey = "WebAppData"
)

// User is the Telegram user embedded in init data.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// LocalUser is the fixed identity the smoke run authenticates as.
var LocalUser = User{
	ID:        123456789,
	FirstName: "Local",
	Username:  "local_dev",
}

// New returns URL encoded init data for user signed with botToken.
func New(botToken string, user User, authDate time.Time) (string, error) {
	if botToken == "" {
		return "", smokeerrors.ErrBotTokenRequired
	}

	userJSON, err := compactJSON(user)
	if err != nil {
		return "", fmt.Errorf("failed to marshal init data user: %w", err)
	}

	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	params.Set("user", userJSON)
	params.Set("hash", Sign(botToken, params))

	return params.Encode(), nil
}

// Header returns the Authorization header value for initData.
func Header(initData string) string {
	return AuthScheme + " " + initData
}

// Sign returns the hex hash of params, ignoring any hash field already present.
func Sign(botToken string, params url.Values) string {
	secret := hmac.New(sha256.New, []byte(secretKey))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(DataCheckString(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// DataCheckString formats params the way Telegram hashes them.
func DataCheckString(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+params.Get(key))
	}
	return strings.Join(lines, "\n")
}

// Validate checks the hash of initData against botToken. A positive maxAge also
// rejects data whose auth_date is older than maxAge relative to now.
func Validate(initData, botToken string, maxAge time.Duration, now time.Time) (url.Values, error) {
	initData = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(initData), AuthScheme+" "))

	params, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse init data: %w", err)
	}

	got := params.Get("hash")
	if got == "" {
		return nil, smokeerrors.ErrInitDataHashAbsent
	}

	want := Sign(botToken, params)
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return nil, smokeerrors.ErrInitDataMismatch
	}

	if maxAge > 0 {
		seconds, err := strconv.ParseInt(params.Get("auth_date"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid auth_date: %w", err)
		}
		if now.Sub(time.Unix(seconds, 0)) > maxAge {
			return nil, smokeerrors.ErrInitDataExpired
		}
	}

	return params, nil
}

// compactJSON encodes v without HTML escaping so non-ASCII and <>& survive as-is.
func compactJSON(v any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
