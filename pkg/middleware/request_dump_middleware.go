package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"adaptive-quiz-backend/utilities"
)

// maxDumpBody caps how much of a request body is logged.
const maxDumpBody = 64 << 10

// RequestDumpMiddleware logs every request at debug level. Credentials are
// masked.
func RequestDumpMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxDumpBody))
			rest := c.Request.Body
			c.Request.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(bodyBytes), rest), rest}
		}

		utilities.Debug(
			"[Request]\n"+
				"\tMethod: %s\n"+
				"\tURL: %s\n"+
				"\tHeaders: %v\n"+
				"\tParams: %v\n"+
				"\tBody: %s",
			c.Request.Method,
			c.Request.URL.String(),
			maskedHeaders(c.Request.Header),
			c.Params,
			string(bodyBytes),
		)

		c.Next()
	}
}

func maskedHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range []string{"Authorization", "Cookie"} {
		if out.Get(k) != "" {
			out.Set(k, "***")
		}
	}
	return out
}
