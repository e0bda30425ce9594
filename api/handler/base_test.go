package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskmirror/backend/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid", domain.ErrEmptyTitle, http.StatusBadRequest, "INVALID"},
		{"not found", domain.ErrTaskNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"gone", domain.ErrTaskGone, http.StatusGone, "GONE"},
		{"conflict", domain.ErrSyncInFlight, http.StatusConflict, "CONFLICT"},
		{"offline", domain.ErrOffline, http.StatusServiceUnavailable, "OFFLINE"},
		{"unavailable", domain.NewError(domain.ErrCodeUnavailable, "record store unavailable"), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"transport", domain.NewError(domain.ErrCodeTransport, "batch push failed"), http.StatusBadGateway, "TRANSPORT"},
		{"wrapped", domain.WrapError(domain.ErrCodeNotFound, "task not found", errors.New("no rows")), http.StatusNotFound, "NOT_FOUND"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := mapError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, code)
		})
	}
}
