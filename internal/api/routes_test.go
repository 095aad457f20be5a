package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jansahayak/agent/domain/entities"
	"github.com/jansahayak/agent/internal/websocket"
	"github.com/jansahayak/agent/usecase"
)

type stubStore struct{}

func (stubStore) Save(context.Context, entities.ConversationSummary) error { return nil }

func (stubStore) Recent(context.Context, int) ([]entities.ConversationSummary, error) {
	return nil, nil
}

func (stubStore) Close() error { return nil }

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	driver, err := usecase.NewDriver(usecase.Config{APIKey: "k"}, usecase.Deps{}, nil)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	hub := websocket.NewHub(driver, zap.NewNop())

	e := echo.New()
	InitRoutes(e, hub, driver, stubStore{}, zap.NewNop())
	return e
}

func doGet(t *testing.T, e *echo.Echo, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRegionsAndLanguages(t *testing.T) {
	e := newTestServer(t)

	rec := doGet(t, e, "/api/v1/regions")
	var regions RegionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &regions); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(regions.Regions) != len(entities.IndianStates) {
		t.Errorf("regions = %d", len(regions.Regions))
	}

	rec = doGet(t, e, "/api/v1/languages")
	var langs LanguagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &langs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(langs.Languages) == 0 || langs.Languages[0].Code != "hi" {
		t.Errorf("languages = %+v", langs.Languages)
	}
}

func TestSchemesRegionFilter(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/api/v1/schemes?region=Andhra+Pradesh")
	var resp SchemesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Schemes) == 0 {
		t.Fatal("no schemes returned")
	}
	for _, s := range resp.Schemes {
		if !s.Central() && s.Region != "Andhra Pradesh" {
			t.Errorf("unexpected scheme %+v", s)
		}
	}
}

func TestConversationsEmptyList(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/api/v1/conversations")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp SummariesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Summaries == nil {
		t.Error("summaries should be an empty list, not null")
	}
}
