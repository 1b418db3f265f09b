package sonos

import (
	"context"
	"errors"
	"testing"
)

func TestWithRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), "Test", func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("result=%q err=%v", result, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), "Test", func() (string, error) {
		calls++
		if calls < 3 {
			return "", &SoapError{Kind: SoapErrorFault, FaultString: "UPnPError 701"}
		}
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("result=%q err=%v", result, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_StopsOnNonTransient(t *testing.T) {
	calls := 0
	wantErr := errors.New("boom")
	_, err := WithRetry(context.Background(), "Test", func() (string, error) {
		calls++
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry for non-transient)", calls)
	}
}

func TestWithRetry_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), "Test", func() (string, error) {
		calls++
		return "", &SoapError{Kind: SoapErrorFault, FaultString: "UPnPError 701"}
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != len(withRetryDelays)+1 {
		t.Fatalf("calls = %d, want %d", calls, len(withRetryDelays)+1)
	}
}
