package accesscode

import (
	"regexp"
	"testing"
)

var codeFormat = regexp.MustCompile(`^[A-Z2-7]{4}(-[A-Z2-7]{4}){3}$`)

func TestMintCode(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		code, err := MintCode()
		if err != nil {
			t.Fatalf("MintCode() error = %v", err)
		}
		if !codeFormat.MatchString(code) {
			t.Fatalf("MintCode() = %s, want format XXXX-XXXX-XXXX-XXXX", code)
		}
		if seen[code] {
			t.Fatalf("MintCode() produced a duplicate: %s", code)
		}
		seen[code] = true
	}
}
