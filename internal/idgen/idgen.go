package idgen

import (
	"context"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Alphabet URL-безопасный алфавит без визуально похожих символов (0/O, 1/l/I)
	Alphabet      = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"
	defaultLength = 12
)

// Generator выдаёт непрозрачные идентификаторы паст
type Generator struct {
	length int
}

// New возвращает генератор идентификаторов длины length. При length <= 0 используется 12.
func New(length int) *Generator {
	if length <= 0 {
		length = defaultLength
	}
	return &Generator{length: length}
}

// Generate возвращает новый идентификатор
func (g *Generator) Generate(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return gonanoid.Generate(Alphabet, g.length)
}
