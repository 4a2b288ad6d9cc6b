package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coursebook/internal/adapters/http/perf"
)

func TestTiming_RecordsMatchedRoute(t *testing.T) {
	collector := perf.NewCollector(10)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/lessons/{id}/bookings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	handler := Timing(collector, time.Second)(mux)

	for _, id := range []string{"l1", "l2"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/lessons/"+id+"/bookings", nil))
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d", rr.Code)
		}
	}

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowestRequests) != 1 {
		t.Fatalf("labels = %+v, want one per route", snap.SlowestRequests)
	}
	if got := snap.SlowestRequests[0]; got.Label != "POST /api/lessons/{id}/bookings" || got.Count != 2 {
		t.Errorf("stat = %+v", got)
	}
}

func TestTiming_SkipsHealthCheck(t *testing.T) {
	collector := perf.NewCollector(10)
	handler := Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if collector.TotalRecorded() != 0 {
		t.Errorf("TotalRecorded = %d, want 0", collector.TotalRecorded())
	}
}

func TestTiming_NilCollector(t *testing.T) {
	handler := Timing(nil, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d", rr.Code)
	}
}

// TestTiming_PanicStillRecorded checks the deferred bookkeeping runs when
// the handler panics; recovering is left to the server.
func TestTiming_PanicStillRecorded(t *testing.T) {
	collector := perf.NewCollector(10)
	handler := Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic to propagate")
		}
		if collector.TotalRecorded() != 1 {
			t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/panic", nil))
}

// TestTiming_PoolDoesNotLeakStatus runs a 500 and then an implicit 200
// through the pooled writer.
func TestTiming_PoolDoesNotLeakStatus(t *testing.T) {
	collector := perf.NewCollector(10)
	fail := Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	ok := Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	fail.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/fail", nil))
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ok", nil))

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	for _, s := range snap.SlowestRequests {
		if s.Label == "GET /api/ok" && s.Errors != 0 {
			t.Errorf("pooled writer leaked status into %+v", s)
		}
	}
}

func BenchmarkTiming_Parallel(b *testing.B) {
	collector := perf.NewCollector(perf.DefaultRingSize)
	handler := Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/courses", nil))
		}
	})
}
