package metrics

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeRecorder struct {
	mu       sync.Mutex
	frontend []int
	backend  []int
}

func (f *fakeRecorder) RecordBackend(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backend = append(f.backend, status)
}

func (f *fakeRecorder) RecordFrontend(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frontend = append(f.frontend, status)
}

func TestFrontendRecordsFinalStatus(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		expected int
	}{
		{"implicit 200 on write", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}, 200},
		{"implicit 200 without body", func(w http.ResponseWriter, r *http.Request) {}, 200},
		{"explicit 404", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, 404},
		{"first status wins", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.WriteHeader(http.StatusOK)
		}, 503},
		{"informational then final", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusEarlyHints)
			w.WriteHeader(http.StatusCreated)
		}, 201},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			h := Frontend(rec)(tt.handler)
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api", nil))

			if len(rec.frontend) != 1 || rec.frontend[0] != tt.expected {
				t.Errorf("Expected frontend record %d, got %v", tt.expected, rec.frontend)
			}
			if len(rec.backend) != 0 {
				t.Errorf("Frontend middleware must not record backend traffic, got %v", rec.backend)
			}
		})
	}
}

func TestFrontendSkipsAdminPaths(t *testing.T) {
	rec := &fakeRecorder{}
	h := Frontend(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, p := range []string{"/health", "/metrics", "/stats"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if len(rec.frontend) != 0 {
		t.Errorf("Expected admin paths to be ignored, got %v", rec.frontend)
	}
}

func TestFrontendInFlightGauge(t *testing.T) {
	rec := &fakeRecorder{}
	var during float64

	h := Frontend(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(HTTPRequestInFlight)
	}))

	before := testutil.ToFloat64(HTTPRequestInFlight)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api", nil))

	if during != before+1 {
		t.Errorf("Expected in-flight %v during request, got %v", before+1, during)
	}
	if after := testutil.ToFloat64(HTTPRequestInFlight); after != before {
		t.Errorf("Expected in-flight back to %v, got %v", before, after)
	}
}

func TestFrontendRecordsAbortedResponses(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		expected []int
	}{
		{"abort after status sent", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("short"))
			panic(http.ErrAbortHandler)
		}, []int{200}},
		{"abort after implicit status", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("partial"))
			panic(http.ErrAbortHandler)
		}, []int{200}},
		{"abort before any status", func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			h := Frontend(rec)(tt.handler)

			func() {
				defer func() {
					if r := recover(); r != http.ErrAbortHandler {
						t.Errorf("Expected the abort to propagate, got %v", r)
					}
				}()
				h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api", nil))
			}()

			if len(rec.frontend) != len(tt.expected) {
				t.Fatalf("Expected frontend records %v, got %v", tt.expected, rec.frontend)
			}
			for i, code := range tt.expected {
				if rec.frontend[i] != code {
					t.Errorf("Expected frontend records %v, got %v", tt.expected, rec.frontend)
				}
			}
		})
	}
}
