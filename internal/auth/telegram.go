package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrBadSignature = errors.New("init data signature mismatch")
	ErrExpired      = errors.New("init data expired")
)

// TelegramUser is the user payload embedded in Mini-App init data.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// VerifyInitData checks the HMAC signature and age of a Telegram WebApp
// initData string. The secret key is HMAC-SHA256("WebAppData", botToken); the
// signed payload is the sorted key=value list joined with newlines, excluding
// the hash parameter itself.
func VerifyInitData(initData, botToken string, maxAge time.Duration) error {
	params, err := url.ParseQuery(initData)
	if err != nil {
		return ErrBadSignature
	}

	hash := params.Get("hash")
	if hash == "" {
		return ErrBadSignature
	}
	params.Del("hash")

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}
	checkString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return ErrBadSignature
	}

	authDate, _ := strconv.ParseInt(params.Get("auth_date"), 10, 64)
	if time.Since(time.Unix(authDate, 0)) > maxAge {
		return ErrExpired
	}

	return nil
}

// ParseInitDataUser extracts the Telegram user from initData. Signature
// verification is the caller's responsibility.
func ParseInitDataUser(initData string) (*TelegramUser, error) {
	params, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}

	raw := params.Get("user")
	if raw == "" {
		return nil, errors.New("init data has no user")
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errors.New("init data user has no id")
	}
	return &user, nil
}
