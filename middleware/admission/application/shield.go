package application

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"flux-gateway/middleware/admission/domain"
)

// Verify confere a prova de trabalho: o SHA-256 em hexadecimal de
// identity||solution precisa começar com `difficulty` caracteres '0'.
//
// A semente é o próprio identity, sem nonce nem expiração: uma solução válida
// continua válida até a dificuldade mudar.
func Verify(identity, solution string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > domain.MaxDifficulty {
		return false
	}
	sum := sha256.Sum256([]byte(identity + solution))
	digest := hex.EncodeToString(sum[:])
	return strings.HasPrefix(digest, strings.Repeat("0", difficulty))
}

// Solve procura por força bruta um nonce decimal que satisfaça Verify.
// maxAttempts == 0 significa sem limite.
func Solve(seed string, difficulty int, maxAttempts uint64) (string, bool) {
	if difficulty > domain.MaxDifficulty {
		return "", false
	}
	for n := uint64(0); maxAttempts == 0 || n < maxAttempts; n++ {
		candidate := strconv.FormatUint(n, 10)
		if Verify(seed, candidate, difficulty) {
			return candidate, true
		}
	}
	return "", false
}
