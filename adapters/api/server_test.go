package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/apportion"
	"echostrata/internal/density"
	"echostrata/internal/errors"
	"echostrata/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuns struct {
	runs  map[core.RunID]*ports.RunRecord
	rows  map[core.RunID]density.BiomassTable
	cells map[core.RunID][]apportion.Cell
	fail  error
}

func (f *fakeRuns) SaveRun(ctx context.Context, run *ports.RunRecord, biomass density.BiomassTable, cells []apportion.Cell) error {
	return nil
}

func (f *fakeRuns) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, errors.NotFound("run " + id.String())
	}
	return run, nil
}

func (f *fakeRuns) ListRuns(ctx context.Context, limit, offset int) ([]*ports.RunRecord, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	var out []*ports.RunRecord
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRuns) BiomassRows(ctx context.Context, id core.RunID) (density.BiomassTable, error) {
	if _, err := f.GetRun(ctx, id); err != nil {
		return nil, err
	}
	return f.rows[id], nil
}

func (f *fakeRuns) ApportionedCells(ctx context.Context, id core.RunID, sex *survey.Sex) ([]apportion.Cell, error) {
	if _, err := f.GetRun(ctx, id); err != nil {
		return nil, err
	}
	var out []apportion.Cell
	for _, c := range f.cells[id] {
		if sex == nil || c.Sex == *sex {
			out = append(out, c)
		}
	}
	return out, nil
}

const testRun core.RunID = "run-1"

func newTestServer(t *testing.T) (*Server, *fakeRuns) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := &fakeRuns{
		runs: map[core.RunID]*ports.RunRecord{
			testRun: {ID: testRun, Name: "north", TotalBiomass: 1650},
		},
		rows: map[core.RunID]density.BiomassTable{
			testRun: {
				{Transect: 1, Latitude: 45, Longitude: -125, Biomass: 550, Abundance: 500},
				{Transect: 2, Latitude: 46, Longitude: -124, Biomass: 1100, Abundance: 1000},
			},
		},
		cells: map[core.RunID][]apportion.Cell{
			testRun: {
				{Sex: survey.SexAll, Biomass: 4},
				{Sex: survey.SexMale, Biomass: 3},
				{Sex: survey.SexFemale, Biomass: 1},
			},
		},
	}
	return NewServer(repo, nil), repo
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)
	w, body := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Runs(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := get(t, s, "/runs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["runs"], 1)

	w, body = get(t, s, "/runs/run-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "north", body["name"])
	assert.Equal(t, 1650.0, body["total_biomass"])
}

func TestServer_Biomass(t *testing.T) {
	s, _ := newTestServer(t)
	w, body := get(t, s, "/runs/run-1/biomass")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["rows"], 2)
	assert.Equal(t, 1650.0, body["total_biomass"])
	assert.Equal(t, 1500.0, body["total_abundance"])
	assert.NotNil(t, body["extent"])
}

func TestServer_Apportioned(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name  string
		query string
		cells int
		total float64
	}{
		{"all sexes", "", 3, 4},
		{"male only", "?sex=male", 1, 3},
		{"sum row", "?sex=all", 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := get(t, s, "/runs/run-1/apportioned"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Len(t, body["cells"], tt.cells)
			assert.Equal(t, tt.total, body["total_biomass"])
		})
	}
}

func TestServer_Errors(t *testing.T) {
	s, repo := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown run", "/runs/missing", http.StatusNotFound, errors.CodeNotFound},
		{"unknown run biomass", "/runs/missing/biomass", http.StatusNotFound, errors.CodeNotFound},
		{"bad sex", "/runs/run-1/apportioned?sex=both", http.StatusBadRequest, errors.CodeInvalidInput},
		{"bad limit", "/runs?limit=-1", http.StatusBadRequest, errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := get(t, s, tt.path)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}

	repo.fail = errors.DatabaseError("connection lost", nil)
	w, body := get(t, s, "/runs")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.CodeDatabaseError, body["code"])
}

func TestServer_RecoversFromPanic(t *testing.T) {
	s, _ := newTestServer(t)
	s.router.GET("/explode", func(c *gin.Context) { panic("boom") })

	w, body := get(t, s, "/explode")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.CodeInternalError, body["code"])
	assert.Equal(t, "internal server error", body["error"])
}
