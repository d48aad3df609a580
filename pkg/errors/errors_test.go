package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestWithInternalCopyMatchesSentinel(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := fmt.Errorf("submit: %w", ErrSaveFailed.WithInternal(cause))

	if !stdErrors.Is(err, ErrSaveFailed) {
		t.Fatal("expected copy to match ErrSaveFailed")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatal("expected cause to remain reachable")
	}
	if stdErrors.Is(err, ErrSubmissionLimit) {
		t.Fatal("did not expect match against a different code")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestLeadSentinelsCarryWireMessages(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		msg    string
	}{
		{ErrInvalidEmail, http.StatusBadRequest, "Valid email is required"},
		{ErrSubmissionLimit, http.StatusTooManyRequests, "You’ve already joined twice with this email."},
		{ErrSaveFailed, http.StatusInternalServerError, "Failed to save lead"},
		{ErrMethodNotAllowed, http.StatusMethodNotAllowed, "Method not allowed"},
	}
	for _, tc := range cases {
		if tc.err.StatusCode != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.err.Code, tc.err.StatusCode, tc.status)
		}
		if tc.err.Message != tc.msg {
			t.Fatalf("%s: message = %q, want %q", tc.err.Code, tc.err.Message, tc.msg)
		}
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != ErrBadRequest.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}
