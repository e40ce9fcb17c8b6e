package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// KindForStatus maps an HTTP status code to an outcome kind.
func KindForStatus(status int) deploy.OutcomeKind {
	switch {
	case status >= 200 && status < 300:
		return deploy.Success
	case status == http.StatusNotFound, status == http.StatusGone:
		return deploy.NotFound
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return deploy.Conflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return deploy.ValidationFailure
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return deploy.TransientFailure
	case status >= http.StatusInternalServerError:
		return deploy.TransientFailure
	default:
		return deploy.Fatal
	}
}

// classifyResponse returns nil for a success status, otherwise an error
// carrying the outcome and any messages the server put in the body.
func classifyResponse(method, url string, resp *deploy.Response) error {
	kind := KindForStatus(resp.StatusCode)
	if kind == deploy.Success {
		return nil
	}

	opErr := &deploy.Error{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Method:     method,
		URL:        url,
	}

	if errResp, err := deploy.ParseErrorResponse(resp.Body); err == nil {
		opErr.Message = errResp.ErrorMessage
		opErr.Details = errResp.Messages()
	}

	if opErr.Message == "" {
		opErr.Message = http.StatusText(resp.StatusCode)
	}

	if kind == deploy.Fatal {
		opErr.Err = deploy.ErrUnexpectedStatus
	}

	return opErr
}

// interceptorError maps a request interceptor failure. It happens before
// anything is sent and is deterministic, so it is Fatal unless the
// interceptor chose a kind itself or the caller cancelled.
func interceptorError(ctx context.Context, method, url string, err error) error {
	var opErr *deploy.Error
	if errors.As(err, &opErr) {
		return err
	}

	kind := deploy.Fatal
	if ctx.Err() != nil {
		kind = deploy.Cancelled
	}

	return &deploy.Error{Kind: kind, Method: method, URL: url, Err: err}
}

// classifyError maps a failure that produced no response. Network errors and
// an open circuit are transient.
func classifyError(ctx context.Context, method, url string, err error) error {
	var opErr *deploy.Error
	if errors.As(err, &opErr) {
		return err
	}

	kind := deploy.TransientFailure

	switch {
	case ctx.Err() != nil:
		kind = deploy.Cancelled
	case errors.Is(err, ErrBuildRequest):
		kind = deploy.Fatal
	}

	return &deploy.Error{Kind: kind, Method: method, URL: url, Err: err}
}
