package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// generatePIN returns a uniformly random 4-digit PIN in 1000-9999.
func generatePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", 1000+n.Int64()), nil
}

// pinDigest keys the PIN with the salt before bcrypt, which only reads 72 bytes.
func pinDigest(salt, pin string) []byte {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(strings.TrimSpace(pin)))
	return []byte(hex.EncodeToString(mac.Sum(nil)))
}

func hashPIN(salt, pin string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword(pinDigest(salt, pin), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func pinMatches(salt, pin, hash string) bool {
	if hash == "" || strings.TrimSpace(pin) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), pinDigest(salt, pin)) == nil
}

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// secretCode derives the short receipt code bound to a class session and a student's
// email and phone. It cannot be reversed to any of its inputs.
func secretCode(salt, classID, sessionKey, email, phone string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(strings.Join([]string{
		strings.ToLower(strings.TrimSpace(classID)),
		strings.TrimSpace(sessionKey),
		strings.ToLower(strings.TrimSpace(email)),
		digits(phone),
	}, "|")))
	return secretEncoding.EncodeToString(mac.Sum(nil))[:6]
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
