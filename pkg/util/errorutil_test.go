package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestToDomainError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewForbidden("nope"))
	if got := ToDomainError(wrapped); got.HTTPStatus != http.StatusForbidden || got.Code != "FORBIDDEN" {
		t.Errorf("wrapped domain error = %+v", got)
	}

	if got := ToDomainError(fiber.ErrNotFound); got.HTTPStatus != http.StatusNotFound || got.Code != "NOT_FOUND" {
		t.Errorf("fiber error = %+v", got)
	}

	cause := errors.New("boom")
	got := ToDomainError(cause)
	if got.HTTPStatus != http.StatusInternalServerError || !errors.Is(got, cause) {
		t.Errorf("generic error = %+v", got)
	}

	if ToDomainError(nil) != nil {
		t.Error("nil error should map to nil")
	}
}

func TestUnavailableWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewUnavailable("redis", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause not unwrapped")
	}
	if err.Error() != "redis unavailable: dial tcp: refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}
