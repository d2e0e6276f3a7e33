package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const tokenBytes = 32

// NewToken 生成不透明 bearer token（256 bit 随机数，hex 编码）
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// BearerToken 从 Authorization 头取 token；格式不对返回 false
func BearerToken(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return "", false
	}
	return tok, true
}
