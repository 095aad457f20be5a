package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jansahayak/agent/domain/entities"
)

func TestLocateParsesCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","lat":17.4,"lon":78.5}`))
	}))
	defer srv.Close()

	l := NewHTTPLocator(srv.URL, nil)
	c, err := l.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if c.Lat != 17.4 || c.Lng != 78.5 {
		t.Errorf("coords = %+v", c)
	}
	if got := entities.RegionForCoordinates(c.Lat, c.Lng); got != "Telangana" {
		t.Errorf("region = %q, want Telangana", got)
	}
}

func TestLocateFailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail"}`))
	}))
	defer srv.Close()

	if _, err := NewHTTPLocator(srv.URL, nil).Locate(context.Background()); err == nil {
		t.Fatal("expected error on failed status")
	}
}

func TestLocateHonorsContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := NewHTTPLocator(srv.URL, nil).Locate(ctx); err == nil {
		t.Fatal("expected deadline error")
	}
}

func TestRegionBands(t *testing.T) {
	tests := []struct {
		lat  float64
		want string
	}{
		{28.7, "Delhi"},
		{26.8, "Uttar Pradesh"},
		{22.6, "West Bengal"},
		{19.1, "Maharashtra"},
		{17.4, "Telangana"},
		{13.0, "Andhra Pradesh"},
	}
	for _, tt := range tests {
		if got := entities.RegionForCoordinates(tt.lat, 78); got != tt.want {
			t.Errorf("RegionForCoordinates(%v) = %q, want %q", tt.lat, got, tt.want)
		}
	}
}
