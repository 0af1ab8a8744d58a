package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "ratelimit:aux:192.0.2.1"

func newEvent(userAgent string) *core.RequestEvent {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stations/s1/aux/join", nil)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = httptest.NewRecorder()
	return e
}

func TestRateLimiter_RateLimit_FirstRequestSetsWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3)

	mock.ExpectIncr(testKey).SetVal(1)
	mock.ExpectExpire(testKey, time.Minute).SetVal(true)

	require.NoError(t, limiter.RateLimit(newEvent("")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RateLimit(t *testing.T) {
	tests := []struct {
		name    string
		count   int64
		limited bool
	}{
		{"under the limit", 2, false},
		{"at the limit", 3, false},
		{"over the limit", 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			limiter := NewRateLimiter(db, 3)
			mock.ExpectIncr(testKey).SetVal(tt.count)

			err := limiter.RateLimit(newEvent(""))

			if tt.limited {
				var apiErr *router.ApiError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRateLimiter_RateLimit_RedisErrorFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3)
	mock.ExpectIncr(testKey).SetErr(errors.New("connection refused"))

	assert.NoError(t, limiter.RateLimit(newEvent("")))
}

func TestRateLimiter_DefaultLimit(t *testing.T) {
	limiter := NewRateLimiter(nil, 0)
	assert.Equal(t, int64(30), limiter.limit)
	assert.NoError(t, limiter.RateLimit(newEvent("")))
}

func TestRateLimiter_AntiBot(t *testing.T) {
	limiter := NewRateLimiter(nil, 30)

	tests := []struct {
		userAgent string
		blocked   bool
	}{
		{"Mozilla/5.0 (X11; Linux x86_64)", false},
		{"", false},
		{"Googlebot/2.1", true},
		{"my-CRAWLER", true},
		{"scraper-kit/1.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.userAgent, func(t *testing.T) {
			err := limiter.AntiBot(newEvent(tt.userAgent))
			if tt.blocked {
				var apiErr *router.ApiError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusForbidden, apiErr.Status)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
