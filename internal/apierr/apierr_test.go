package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestClassified_StatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Internal, http.StatusInternalServerError},
		{Transient, http.StatusServiceUnavailable},
		{NotFound, http.StatusNotFound},
		{InvalidRequest, http.StatusBadRequest},
		{Configuration, http.StatusInternalServerError},
	}
	for _, c := range cases {
		e := New(c.kind, "x", "y")
		if got := e.Status(); got != c.want {
			t.Errorf("Kind %v: Status() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(Transient, "soap_timeout", "speaker unreachable", cause)
	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if e.Error() != "speaker unreachable: boom" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestWrap_NilCause(t *testing.T) {
	e := Wrap(Internal, "x", "y", nil)
	if e.Cause != nil {
		t.Error("expected nil Cause to stay nil")
	}
}

func TestAsEnvelope_ClassifiedError(t *testing.T) {
	e := NotFoundf("stream_not_found", "no such stream")
	env, status := AsEnvelope(e)
	if status != http.StatusNotFound {
		t.Errorf("status = %d", status)
	}
	if env.Error != "stream_not_found" || env.Message != "no such stream" || env.Status != http.StatusNotFound {
		t.Errorf("envelope = %+v", env)
	}
}

func TestAsEnvelope_PlainError(t *testing.T) {
	env, status := AsEnvelope(errors.New("unexpected"))
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d", status)
	}
	if env.Error != "internal" {
		t.Errorf("Error = %q", env.Error)
	}
}

func TestAsEnvelope_WrappedClassified(t *testing.T) {
	cause := New(NotFound, "renderer_not_found", "no such renderer")
	wrapped := errors.New("outer: " + cause.Error())
	_ = wrapped // sanity: plain wrap loses classification, only errors.As chains preserve it

	chained := Wrap(Transient, "retry", "retrying", cause)
	env, status := AsEnvelope(chained)
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want transient's 503", status)
	}
	if env.Error != "retry" {
		t.Errorf("outer classification should win, got %q", env.Error)
	}
}
