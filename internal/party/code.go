package party

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/DoyleJ11/party-trivia-backend/internal/apperr"
	"github.com/DoyleJ11/party-trivia-backend/internal/models"

	"gorm.io/gorm"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

// NormalizeCode uppercases and validates a user-supplied code.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return "", apperr.Validation("code must be %d characters", codeLength)
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeCharset, rune(code[i])) {
			return "", apperr.Validation("code may only contain A-Z and 0-9")
		}
	}
	return code, nil
}

// uniqueCode generates until the code is unused. The unique index on
// parties.code still backs this up if two creations race on the same
// candidate.
func uniqueCode(tx *gorm.DB) (string, error) {
	for {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		var n int64
		if err := tx.Model(&models.Party{}).Where("code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
}
