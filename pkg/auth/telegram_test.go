package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInitData = "query_id=AAHdF6IQAAAAAN0XohDhrOrc" +
	"&user=%7B%22id%22%3A5060715466%2C%22first_name%22%3A%22Bob%22%2C%22username%22%3A%22defi_master%22%7D" +
	"&auth_date=1677649900&hash=e2e58"

func TestExtractTelegramData(t *testing.T) {
	tests := []struct {
		name     string
		initData string
		expected *TelegramUserData
		wantErr  bool
	}{
		{
			name:     "Valid",
			initData: sampleInitData,
			expected: &TelegramUserData{
				ID:        5060715466,
				Username:  "defi_master",
				FirstName: "Bob",
				AuthDate:  time.Unix(1677649900, 0),
			},
		},
		{
			name:     "Missing auth date",
			initData: "user=%7B%22id%22%3A1%7D",
			wantErr:  true,
		},
		{
			name:     "Malformed user",
			initData: "auth_date=1677649900&user=not-json",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractTelegramData(tt.initData)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTelegramAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		header         string
		debug          bool
		expectedStatus int
		expectedID     int64
	}{
		{name: "Missing header", expectedStatus: http.StatusUnauthorized},
		{name: "Wrong scheme", header: "Bearer abc", expectedStatus: http.StatusUnauthorized},
		{name: "Bad signature", header: "Telegram " + sampleInitData, expectedStatus: http.StatusUnauthorized},
		{name: "Debug skips signature", header: "Telegram " + sampleInitData, debug: true, expectedStatus: http.StatusOK, expectedID: 5060715466},
		{name: "Debug with garbage", header: "Telegram auth_date=x", debug: true, expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(NewTelegramAuth("123:token", tt.debug).TelegramAuthMiddleware())

			var seen int64
			router.GET("/me", func(c *gin.Context) {
				user, ok := UserFromContext(c)
				require.True(t, ok)
				seen = user.ID
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedID, seen)
		})
	}
}
