package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/alerts"
	"github.com/travelsafe/security-barometer/internal/archive"
	"github.com/travelsafe/security-barometer/internal/model"
	"github.com/travelsafe/security-barometer/internal/storage"
)

type fakeAlertSource struct {
	alertList []model.UniversalAlert
}

func (f *fakeAlertSource) Snapshot() []model.UniversalAlert {
	return f.alertList
}

type fakeIngestor struct {
	batches [][]model.UniversalAlert
}

func (f *fakeIngestor) BatchProcessAlerts(_ context.Context, rawAlerts []model.UniversalAlert) []string {
	f.batches = append(f.batches, rawAlerts)
	ids := make([]string, len(rawAlerts))
	for i := range ids {
		ids[i] = fmt.Sprintf("incident-%d", i+1)
	}
	return ids
}

type fakeArchiver struct {
	lastActor string
}

func (f *fakeArchiver) ExecuteRules(_ context.Context, actorID string) ([]archive.RuleResult, error) {
	if actorID == "" {
		return nil, archive.ErrNoActor
	}
	f.lastActor = actorID
	return []archive.RuleResult{{Rule: archive.DefaultRules[0], ArchivedCount: 2}}, nil
}

func (f *fakeArchiver) GetCandidates(_ context.Context) ([]archive.CandidateCount, error) {
	return []archive.CandidateCount{{Rule: archive.DefaultRules[0], Count: 5}}, nil
}

type fakeIncidentStore struct {
	incidents map[string]*model.Incident
}

func newFakeIncidentStore() *fakeIncidentStore {
	return &fakeIncidentStore{incidents: make(map[string]*model.Incident)}
}

func (s *fakeIncidentStore) InsertIncident(_ context.Context, incident *model.Incident) (string, error) {
	s.incidents[incident.ID] = incident
	return incident.ID, nil
}

func (s *fakeIncidentStore) GetIncident(_ context.Context, id string) (*model.Incident, error) {
	return s.incidents[id], nil
}

func (s *fakeIncidentStore) ListIncidents(_ context.Context, filter storage.IncidentFilter) ([]*model.Incident, error) {
	var out []*model.Incident
	for _, incident := range s.incidents {
		if filter.ProvinceCode != "" && incident.ProvinceCode != filter.ProvinceCode {
			continue
		}
		out = append(out, incident)
	}
	return out, nil
}

func (s *fakeIncidentStore) FindRecentIncidentByTitle(_ context.Context, _ string, _ time.Time) (*model.Incident, error) {
	return nil, nil
}

func (s *fakeIncidentStore) UpdateVerification(_ context.Context, id string, status model.VerificationStatus) error {
	incident, ok := s.incidents[id]
	if !ok {
		return fmt.Errorf("incident not found: %s", id)
	}
	incident.VerificationStatus = status
	return nil
}

func (s *fakeIncidentStore) FindArchiveCandidates(_ context.Context, _, _ string, _ time.Time, _ string) ([]string, error) {
	return nil, nil
}

func (s *fakeIncidentStore) BulkArchive(_ context.Context, _ string, _ []string, _, _ string) (int64, error) {
	return 0, nil
}

func newTestServer(t *testing.T, store storage.IncidentStore, source AlertSource) (*Server, *fakeIngestor, *fakeArchiver) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	ingestor := &fakeIngestor{}
	archiver := &fakeArchiver{}
	if source == nil {
		source = &fakeAlertSource{}
	}
	server := NewServer(logger, Options{
		Addr:       ":0",
		Store:      store,
		AlertFeed:  source,
		Ingestor:   ingestor,
		Archiver:   archiver,
		Confidence: alerts.DefaultConfidenceConfig(),
		Tokens: map[string]Role{
			"admin-token":    RoleAdmin,
			"operator-token": RoleOperator,
		},
	})
	return server, ingestor, archiver
}

func doRequest(server *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsMissingAndUnknownTokens(t *testing.T) {
	server, _, _ := newTestServer(t, newFakeIncidentStore(), nil)

	rec := doRequest(server, http.MethodGet, "/api/incidents", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(server, http.MethodGet, "/api/incidents", "bogus", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthEnforcesAdminRole(t *testing.T) {
	server, _, _ := newTestServer(t, newFakeIncidentStore(), nil)

	rec := doRequest(server, http.MethodPost, "/api/archive/run", "operator-token", `{"actor_id": "op-1"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(server, http.MethodPost, "/api/archive/run", "admin-token", `{"actor_id": "admin-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListAlertsScoresAndFilters(t *testing.T) {
	source := &fakeAlertSource{alertList: []model.UniversalAlert{
		{
			ID:          "a1",
			Source:      "Environment Canada",
			Title:       "Severe thunderstorm warning",
			Description: "Large hail and damaging winds expected this evening",
			Severity:    "severe",
			Urgency:     "immediate",
			Area:        "Ottawa",
			Published:   "2024-06-01T12:00:00Z",
		},
		{ID: "a2", Source: "", Title: ""}, // sparse, scores very-low
	}}
	server, _, _ := newTestServer(t, newFakeIncidentStore(), source)

	rec := doRequest(server, http.MethodGet, "/api/alerts", "operator-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Severe thunderstorm warning")
	assert.Contains(t, body, `"is_from_authoritative_source":true`)
	assert.Contains(t, body, `"confidence_level":"high"`)
	assert.Contains(t, body, `"visual_priority"`)
	// The sparse alert is dropped by the default confidence filter
	assert.Contains(t, body, `"total":1`)
}

func TestIngestAcceptsArrayAndEnvelope(t *testing.T) {
	server, ingestor, _ := newTestServer(t, newFakeIncidentStore(), nil)

	rec := doRequest(server, http.MethodPost, "/api/alerts/ingest", "operator-token",
		`[{"id": "a1", "source": "Alert Ready", "title": "Flood warning"}]`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(server, http.MethodPost, "/api/alerts/ingest", "operator-token",
		`{"alerts": [{"id": "a2", "source": "Alert Ready", "title": "Wind warning"}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, ingestor.batches, 2)
	assert.Equal(t, "a1", ingestor.batches[0][0].ID)
	assert.Equal(t, "a2", ingestor.batches[1][0].ID)
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	server, _, _ := newTestServer(t, newFakeIncidentStore(), nil)

	rec := doRequest(server, http.MethodPost, "/api/alerts/ingest", "operator-token", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateVerification(t *testing.T) {
	store := newFakeIncidentStore()
	store.incidents["inc-1"] = &model.Incident{
		ID:                 "inc-1",
		Title:              "Flood warning",
		VerificationStatus: model.VerificationUnverified,
	}
	server, _, _ := newTestServer(t, store, nil)

	rec := doRequest(server, http.MethodPatch, "/api/incidents/inc-1/verification", "admin-token",
		`{"status": "verified"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.VerificationVerified, store.incidents["inc-1"].VerificationStatus)

	rec = doRequest(server, http.MethodPatch, "/api/incidents/inc-1/verification", "admin-token",
		`{"status": "probably"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetIncidentNotFound(t *testing.T) {
	server, _, _ := newTestServer(t, newFakeIncidentStore(), nil)

	rec := doRequest(server, http.MethodGet, "/api/incidents/nope", "operator-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveRunRequiresActor(t *testing.T) {
	server, _, archiver := newTestServer(t, newFakeIncidentStore(), nil)

	rec := doRequest(server, http.MethodPost, "/api/archive/run", "admin-token", `{"actor_id": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(server, http.MethodPost, "/api/archive/run", "admin-token", `{"actor_id": "admin-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", archiver.lastActor)
	assert.Contains(t, rec.Body.String(), `"total_archived":2`)
}

func TestArchiveCandidatesPreview(t *testing.T) {
	server, _, _ := newTestServer(t, newFakeIncidentStore(), nil)

	rec := doRequest(server, http.MethodGet, "/api/archive/candidates", "operator-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":5`)
}

func TestHealthEndpointIsPublic(t *testing.T) {
	server, _, _ := newTestServer(t, newFakeIncidentStore(), nil)

	rec := doRequest(server, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
