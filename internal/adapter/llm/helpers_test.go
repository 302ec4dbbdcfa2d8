package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusForbidden, domain.ErrAuthInvalid},
		{http.StatusRequestEntityTooLarge, domain.ErrContextOverflow},
		{http.StatusInternalServerError, domain.ErrProviderError},
		{http.StatusBadGateway, domain.ErrProviderError},
		{http.StatusServiceUnavailable, domain.ErrProviderError},
	}
	for _, tt := range tests {
		err := mapHTTPError(tt.status, []byte(`{"error":"x"}`))
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.Contains(t, err.Error(), "API error")
	}
}

func TestMapHTTPErrorUnknownStatus(t *testing.T) {
	err := mapHTTPError(418, []byte(`I'm a teapot`))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, s := range []error{domain.ErrRateLimit, domain.ErrAuthInvalid, domain.ErrContextOverflow, domain.ErrProviderError} {
		if errors.Is(err, s) {
			t.Errorf("unexpected sentinel %v in %v", s, err)
		}
	}
}

func TestMapHTTPErrorTruncatesBody(t *testing.T) {
	body := make([]byte, 5000)
	for i := range body {
		body[i] = 'x'
	}
	err := mapHTTPError(http.StatusBadRequest, body)
	assert.Less(t, len(err.Error()), 1100)
}

func TestDoJSONRequestTransportError(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	_, err := doJSONRequest(context.Background(), client, "http://llm.invalid/v1", []byte(`{}`), nil)
	assert.ErrorIs(t, err, domain.ErrProviderError)
}

func TestNewHTTPClientTimeouts(t *testing.T) {
	c := NewHTTPClient(config.ProviderConfig{})
	assert.Equal(t, defaultConnTimeout+defaultRespTimeout, c.Timeout)

	c = NewHTTPClient(config.ProviderConfig{ConnTimeout: time.Second, RespTimeout: 2 * time.Second})
	assert.Equal(t, 3*time.Second, c.Timeout)
}
