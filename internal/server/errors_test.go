package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/accounts"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/history"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/serviceerr"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newErrorContext(requestContext context.Context, path string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, path, http.NoBody).WithContext(requestContext)
	return ctx, recorder
}

func decodeErrorBody(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body), recorder.Body.String())
	return body
}

func TestRespondErrorMapsFailures(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "validation", err: serviceerr.New("applications.create", "validation_failed", history.Invalidf("company name is required")), wantStatus: http.StatusBadRequest, wantCode: errorCodeInvalidRequest},
		{name: "reserved status", err: serviceerr.New("applications.append_status", "validation_failed", history.Invalidf("status %q is reserved", history.ReservedStatus)), wantStatus: http.StatusBadRequest, wantCode: errorCodeInvalidRequest},
		{name: "account input", err: serviceerr.New("accounts.sign_up", "validation_failed", &accounts.InputError{Reason: "name is required"}), wantStatus: http.StatusBadRequest, wantCode: errorCodeInvalidRequest},
		{name: "not found", err: serviceerr.New("applications.get", "not_found", fmt.Errorf("%w: application x", history.ErrNotFound)), wantStatus: http.StatusNotFound, wantCode: errorCodeNotFound},
		{name: "not owner", err: serviceerr.New("applications.get", "unauthorized", history.ErrUnauthorized), wantStatus: http.StatusUnauthorized, wantCode: errorCodeUnauthorized},
		{name: "last status", err: serviceerr.New("applications.delete_status", "last_status", history.ErrInvariantViolation), wantStatus: http.StatusConflict, wantCode: errorCodeLastStatus},
		{name: "email taken", err: serviceerr.New("accounts.sign_up", "email_taken", accounts.ErrEmailTaken), wantStatus: http.StatusConflict, wantCode: errorCodeEmailTaken},
		{name: "credentials", err: serviceerr.New("accounts.sign_in", "invalid_credentials", accounts.ErrInvalidCredentials), wantStatus: http.StatusUnauthorized, wantCode: errorCodeInvalidCredentials},
		{name: "password", err: serviceerr.New("applications.delete_all", "password_rejected", accounts.ErrPasswordMismatch), wantStatus: http.StatusBadRequest, wantCode: errorCodePasswordMismatch},
		{name: "internal", err: serviceerr.New("applications.list", "query_failed", errors.New("disk I/O error")), wantStatus: http.StatusInternalServerError, wantCode: errorCodeInternal},
	}
	handler := &httpHandler{logger: zap.NewNop()}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			ctx, recorder := newErrorContext(context.Background(), "/api/applications")

			handler.respondError(ctx, testCase.err)

			assert.Equal(t, testCase.wantStatus, recorder.Code)
			body := decodeErrorBody(t, recorder)
			assert.Equal(t, testCase.wantCode, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestRespondErrorHidesInternalsButKeepsCode(t *testing.T) {
	ctx, recorder := newErrorContext(context.Background(), "/api/statistics")

	handler := &httpHandler{logger: zap.NewNop()}
	handler.respondError(ctx, serviceerr.New("applications.statistics", "query_failed", errors.New("secret table name")))

	body := decodeErrorBody(t, recorder)
	assert.Equal(t, "applications.statistics.query_failed", body.Code)
	assert.Equal(t, "internal server error", body.Message)
}

func TestRespondErrorReportsSupersededQueries(t *testing.T) {
	tracker := NewQueryTracker(nil)
	key := QueryKey{AccountID: "account-1", Route: "/api/applications", ViewID: "list"}
	older, releaseOlder := tracker.Begin(context.Background(), key)
	defer releaseOlder()
	_, releaseNewer := tracker.Begin(context.Background(), key)
	defer releaseNewer()
	ctx, recorder := newErrorContext(older, "/api/applications")

	handler := &httpHandler{logger: zap.NewNop()}
	handler.respondError(ctx, serviceerr.New("applications.list", "query_failed", context.Canceled))

	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, errorCodeSuperseded, decodeErrorBody(t, recorder).Error)
}

func TestRespondErrorTreatsClientDisconnectAsQuiet(t *testing.T) {
	requestContext, cancel := context.WithCancel(context.Background())
	cancel()
	ctx, recorder := newErrorContext(requestContext, "/api/statistics")

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{logger: zap.New(core)}
	handler.respondError(ctx, serviceerr.New("applications.statistics", "query_failed", context.Canceled))

	assert.True(t, ctx.IsAborted())
	assert.Equal(t, statusClientClosedRequest, recorder.Code)
	assert.Empty(t, recorder.Body.String())
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("request cancelled by client").Len())
}
