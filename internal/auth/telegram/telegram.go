package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"

	"github.com/mrreviews/mrr/internal/domain/user"
)

// DefaultMaxAge bounds how old an auth payload may be before it is rejected.
const DefaultMaxAge = 24 * time.Hour

var (
	ErrInvalidHash = crerr.New("telegram auth hash mismatch")
	ErrStale       = crerr.New("telegram auth data is too old")
)

// AuthData is the payload the Telegram login widget delivers. Optional
// fields are omitted from the signed check string when empty, matching how
// the widget signs only the fields it sends.
type AuthData struct {
	ID        int64  `json:"id" validate:"required,gt=0"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date" validate:"required,gt=0"`
	Hash      string `json:"hash" validate:"required"`
}

// Verify checks the widget's HMAC signature and the payload age. The secret
// key is SHA256(botToken); the signed string is the sorted key=value lines of
// every present field except hash.
func Verify(data AuthData, botToken string, now time.Time, maxAge time.Duration) error {
	if strings.TrimSpace(botToken) == "" {
		return crerr.New("bot token is required")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	expected := sign(checkString(data), botToken)
	provided, err := hex.DecodeString(strings.TrimSpace(data.Hash))
	if err != nil {
		return fmt.Errorf("%w: hash is not hex", ErrInvalidHash)
	}
	if !hmac.Equal(expected, provided) {
		return ErrInvalidHash
	}

	issued := time.Unix(data.AuthDate, 0)
	if now.Sub(issued) > maxAge {
		return fmt.Errorf("%w: issued at %s", ErrStale, issued.UTC().Format(time.RFC3339))
	}

	return nil
}

// User maps verified auth data onto the domain identity.
func (d AuthData) User() user.User {
	return user.User{
		TelegramID: d.ID,
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		Username:   d.Username,
		PhotoURL:   d.PhotoURL,
	}
}

func checkString(data AuthData) string {
	fields := map[string]string{
		"id":         strconv.FormatInt(data.ID, 10),
		"auth_date":  strconv.FormatInt(data.AuthDate, 10),
		"first_name": data.FirstName,
	}
	if data.LastName != "" {
		fields["last_name"] = data.LastName
	}
	if data.Username != "" {
		fields["username"] = data.Username
	}
	if data.PhotoURL != "" {
		fields["photo_url"] = data.PhotoURL
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+fields[key])
	}
	return strings.Join(lines, "\n")
}

func sign(payload, botToken string) []byte {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
