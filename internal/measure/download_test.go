package measure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRunDownload_ReadsFullRangeAndReportsSpeed(t *testing.T) {
	body := strings.Repeat("x", 256*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "" {
			t.Errorf("expected a Range header on the download request")
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	client := srv.Client()
	now := time.Now()
	result, err := runDownload(context.Background(), client, srv.URL, 0, int64(len(body)-1), now, now, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalBytes != int64(len(body)) {
		t.Errorf("expected %d bytes read, got %d", len(body), result.TotalBytes)
	}
	if result.DownloadSpeedMbps <= 0 {
		t.Errorf("expected a positive download speed, got %f", result.DownloadSpeedMbps)
	}
}

func TestRunDownload_EmptyBodyIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	now := time.Now()
	_, err := runDownload(context.Background(), srv.Client(), srv.URL, 0, 1023, now, now, 5*time.Second)
	if err == nil {
		t.Fatal("expected an error for a zero-byte download")
	}
}

func TestRunDownload_ServerErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	now := time.Now()
	_, err := runDownload(context.Background(), srv.Client(), srv.URL, 0, 1023, now, now, 5*time.Second)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestRunHead_CollectsLatenciesPerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	stats, err := runHead(context.Background(), srv.Client(), srv.URL, 3, time.Now().Add(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Min < 0 || stats.Max < stats.Min || stats.Avg < stats.Min || stats.Avg > stats.Max {
		t.Errorf("inconsistent min/max/avg: %+v", stats)
	}
}

func TestRunHead_DeadlineInThePastStopsImmediately(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := runHead(context.Background(), srv.Client(), srv.URL, 3, time.Now().Add(-time.Second))
	if err == nil {
		t.Fatal("expected an error when the loop deadline has already passed")
	}
	if called {
		t.Error("expected no requests to be sent once the deadline has already passed")
	}
}
