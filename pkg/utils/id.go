package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID 32 位无连字符 uuid，主键统一用它
func NewID() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }
