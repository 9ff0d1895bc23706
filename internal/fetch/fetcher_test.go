package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type response struct {
	status int
	body   string
	err    error
}

// stubTransport replays a scripted sequence of responses; the last one
// repeats once the script runs out.
type stubTransport struct {
	mu        sync.Mutex
	responses []response
	calls     int
	referers  []string
}

func (s *stubTransport) Get(_ context.Context, _ string, header http.Header) (int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	s.referers = append(s.referers, header.Get("Referer"))
	r := s.responses[i]
	return r.status, []byte(r.body), r.err
}

// recordSleep returns a sleep function that records requested waits.
func recordSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func noJitter(time.Duration) time.Duration { return 0 }

func TestFetcher_JSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		responses []response
		wantCalls int
		wantErr   error
		wantValue string
	}{
		{
			name:      "500 twice then 200",
			responses: []response{{status: 500}, {status: 500}, {status: 200, body: `{"found": 3}`}},
			wantCalls: 3,
			wantValue: "3",
		},
		{
			name:      "404 is not retried",
			responses: []response{{status: 404}},
			wantCalls: 1,
			wantErr:   &StatusError{},
		},
		{
			name:      "403 is not retried",
			responses: []response{{status: 403}},
			wantCalls: 1,
			wantErr:   &StatusError{},
		},
		{
			name:      "429 is retried",
			responses: []response{{status: 429}, {status: 200, body: `{"found": 1}`}},
			wantCalls: 2,
			wantValue: "1",
		},
		{
			name:      "network error is retried",
			responses: []response{{err: errors.New("connection reset")}, {status: 200, body: `{"found": 9}`}},
			wantCalls: 2,
			wantValue: "9",
		},
		{
			name:      "malformed json on 200 is not retried",
			responses: []response{{status: 200, body: "<html>blocked</html>"}},
			wantCalls: 1,
			wantErr:   ErrMalformedJSON,
		},
		{
			name:      "always 503 exhausts attempts",
			responses: []response{{status: 503}},
			wantCalls: 4,
			wantErr:   ErrAttemptsExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubTransport{responses: tt.responses}
			var waits []time.Duration
			f := New(stub, WithSleep(recordSleep(&waits)), WithJitter(noJitter))

			doc, err := f.JSON(context.Background(), "https://fedresurs.ru/backend/x", "https://fedresurs.ru/company/g")

			if stub.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", stub.calls, tt.wantCalls)
			}
			if tt.wantErr != nil {
				var se *StatusError
				if _, ok := tt.wantErr.(*StatusError); ok {
					if !errors.As(err, &se) {
						t.Errorf("expected *StatusError, got %v", err)
					}
				} else if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				if doc.Present() {
					t.Error("expected absent document on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := doc.String("found"); got != tt.wantValue {
				t.Errorf("found = %q, want %q", got, tt.wantValue)
			}
			for _, ref := range stub.referers {
				if ref != "https://fedresurs.ru/company/g" {
					t.Errorf("referer = %q", ref)
				}
			}
		})
	}
}

func TestFetcher_BackoffDoubles(t *testing.T) {
	t.Parallel()

	stub := &stubTransport{responses: []response{{status: 502}}}
	var waits []time.Duration
	f := New(stub,
		WithSleep(recordSleep(&waits)),
		WithJitter(func(time.Duration) time.Duration { return 10 * time.Millisecond }),
	)

	_, err := f.JSON(context.Background(), "https://example.test", "")
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}

	// No wait after the final attempt.
	want := []time.Duration{710 * time.Millisecond, 1410 * time.Millisecond, 2810 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}

	var se *StatusError
	if !errors.As(err, &se) || se.Status != 502 {
		t.Errorf("expected wrapped last status 502, got %v", err)
	}
}

func TestFetcher_Options(t *testing.T) {
	t.Parallel()

	stub := &stubTransport{responses: []response{{status: 500}}}
	var waits []time.Duration
	f := New(stub,
		WithMaxAttempts(2),
		WithBackoff(100*time.Millisecond, 0),
		WithSleep(recordSleep(&waits)),
	)

	if _, err := f.JSON(context.Background(), "https://example.test", ""); err == nil {
		t.Fatal("expected error")
	}
	if stub.calls != 2 {
		t.Errorf("calls = %d, want 2", stub.calls)
	}
	if len(waits) != 1 || waits[0] != 100*time.Millisecond {
		t.Errorf("waits = %v, want [100ms]", waits)
	}
}

func TestFetcher_ContextCancelled(t *testing.T) {
	t.Parallel()

	t.Run("cancelled before first attempt", func(t *testing.T) {
		t.Parallel()

		stub := &stubTransport{responses: []response{{status: 200, body: `{}`}}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New(stub).JSON(ctx, "https://example.test", "")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if stub.calls != 0 {
			t.Errorf("calls = %d, want 0", stub.calls)
		}
	})

	t.Run("cancelled during backoff", func(t *testing.T) {
		t.Parallel()

		stub := &stubTransport{responses: []response{{status: 500}}}
		ctx, cancel := context.WithCancel(context.Background())
		f := New(stub, WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}))

		_, err := f.JSON(ctx, "https://example.test", "")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if stub.calls != 1 {
			t.Errorf("calls = %d, want 1", stub.calls)
		}
	})
}

func TestUniformJitter(t *testing.T) {
	t.Parallel()

	if got := uniformJitter(0); got != 0 {
		t.Errorf("uniformJitter(0) = %v", got)
	}
	for range 100 {
		if got := uniformJitter(250 * time.Millisecond); got < 0 || got >= 250*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
