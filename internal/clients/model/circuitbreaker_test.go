package model_test

import (
	"context"
	"errors"
	"testing"

	"github.com/wagerproof/wagerproof/internal/clients/model"
)

// fakeClient fails a fixed number of times, then succeeds.
type fakeClient struct {
	calls    int
	failures int
}

func (f *fakeClient) Generate(ctx context.Context, system, user string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("provider down")
	}
	return `{"picks":[]}`, nil
}

func TestBreakerClient_PassesThroughSuccess(t *testing.T) {
	inner := &fakeClient{}
	c := model.NewBreakerClient(inner)

	out, err := c.Generate(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"picks":[]}` {
		t.Errorf("Generate() = %q, want passthrough output", out)
	}
}

func TestBreakerClient_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeClient{failures: 1000}
	c := model.NewBreakerClient(inner)

	for i := 0; i < 5; i++ {
		if _, err := c.Generate(context.Background(), "sys", "user"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	callsBefore := inner.calls

	// Circuit is open now: calls fail fast without reaching the provider.
	if _, err := c.Generate(context.Background(), "sys", "user"); err == nil {
		t.Fatal("expected error with open circuit")
	}
	if inner.calls != callsBefore {
		t.Errorf("open circuit still reached provider: calls = %d, want %d", inner.calls, callsBefore)
	}
}
