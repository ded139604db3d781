package serviceutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyAccessToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		token    string
		header   string
		expected int
	}{
		{token: "", header: "", expected: http.StatusNoContent},
		{token: "secret", header: "", expected: http.StatusUnauthorized},
		{token: "secret", header: "Bearer wrong", expected: http.StatusUnauthorized},
		{token: "secret", header: "Bearer secret", expected: http.StatusNoContent},
	}
	for _, test := range cases {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		if test.header != "" {
			req.Header.Set("Authorization", test.header)
		}
		rec := httptest.NewRecorder()
		VerifyAccessToken(test.token)(ok).ServeHTTP(rec, req)
		require.Equal(t, test.expected, rec.Code, "token %q header %q", test.token, test.header)
	}
}
