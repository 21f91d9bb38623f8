package middleware

import (
	"time"

	"github.com/SergeiKhy/pastebin/internal/clock"
	"github.com/gin-gonic/gin"
)

const requestTimeKey = "request_time"

// RequestTime вычисляет логическое время запроса один раз и кладёт его в контекст
func RequestTime(src *clock.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestTimeKey, src.Now(c.GetHeader(clock.TestNowHeader)))
		c.Next()
	}
}

// RequestTimeFromContext возвращает логическое время запроса.
// Если middleware не подключён, используется текущее время.
func RequestTimeFromContext(c *gin.Context) time.Time {
	if v, ok := c.Get(requestTimeKey); ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return clock.Wall{}.Now()
}
