package party

import (
	"errors"
	"strings"
	"testing"

	"github.com/DoyleJ11/party-trivia-backend/internal/apperr"
)

func TestGenerateCode_AlphabetAndLength(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, c := range code {
			if !strings.ContainsRune(codeCharset, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	got, err := NormalizeCode(" ab12cd ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "AB12CD" {
		t.Fatalf("got %q, want AB12CD", got)
	}

	for _, bad := range []string{"", "ABC", "ABCDEFG", "AB CDE", "AB-12C"} {
		if _, err := NormalizeCode(bad); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("NormalizeCode(%q) = %v, want validation error", bad, err)
		}
	}
}
