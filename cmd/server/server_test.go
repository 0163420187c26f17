package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subrisk/internal/config"
	"subrisk/internal/model"
	"subrisk/internal/types"
)

// testArtifact is a two-tree forest splitting on NLR and VitD. Default
// inputs land exactly on the decision boundary; abnormal markers push the
// positive probability to 75%.
func testArtifact() *model.Artifact {
	return &model.Artifact{
		ModelType:    "random_forest",
		Classes:      []int{0, 1},
		FeatureNames: []string{"Subtype", "NLR", "IL6", "CAR", "VitD", "FT4"},
		LeafOutput:   model.LeafDistribution,
		Trees: []model.TreeSpec{
			{
				ChildrenLeft:  []int{1, -1, -1},
				ChildrenRight: []int{2, -1, -1},
				Feature:       []int{1, -1, -1},
				Threshold:     []float64{3.0, 0, 0},
				Values:        [][]float64{{0.55, 0.45}, {0.8, 0.2}, {0.3, 0.7}},
			},
			{
				ChildrenLeft:  []int{1, -1, -1},
				ChildrenRight: []int{2, -1, -1},
				Feature:       []int{4, -1, -1},
				Threshold:     []float64{30.0, 0, 0},
				Values:        [][]float64{{0.45, 0.55}, {0.2, 0.8}, {0.7, 0.3}},
			},
		},
	}
}

func testRouter(t *testing.T, a *model.Artifact) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clf, err := model.New(a)
	require.NoError(t, err)

	cfg := config.Config{
		Port:            "8080",
		CacheTTL:        time.Minute,
		RateLimitPerMin: 100000,
		GinMode:         gin.TestMode,
	}
	r, err := setupRouter(clf, cfg)
	require.NoError(t, err)
	return r
}

func postAssess(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/assess", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAssessAbnormalMarkers(t *testing.T) {
	r := testRouter(t, testArtifact())

	body := `{"values":{"Subtype":2,"NLR":8,"IL6":50,"CAR":2,"VitD":10,"FT4":5}}`
	w := postAssess(r, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.AssessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.NotNil(t, resp.Prediction)
	assert.Equal(t, 1, resp.Prediction.Class)
	assert.Equal(t, "High risk", resp.Prediction.Label)
	assert.InDelta(t, 75.0, resp.Prediction.ProbPositive, 1e-6)
	assert.InDelta(t, 100.0, resp.Prediction.ProbPositive+resp.Prediction.ProbNegative, 1e-6)

	require.NotNil(t, resp.Explanation)
	require.Len(t, resp.Explanation.Bars, 6)
	wantOrder := []string{"Subtype", "NLR", "IL6", "CAR", "VitD", "FT4"}
	for i, bar := range resp.Explanation.Bars {
		assert.Equal(t, wantOrder[i], bar.Feature)
	}
	assert.Empty(t, resp.ExplanationError)
}

func TestAssessBoundaryResolvesHighRisk(t *testing.T) {
	r := testRouter(t, testArtifact())

	// Default inputs produce exactly 50% positive probability.
	body := `{"values":{"Subtype":0,"NLR":5,"IL6":5,"CAR":0.2,"VitD":35,"FT4":15}}`
	w := postAssess(r, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.AssessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Prediction)
	assert.InDelta(t, 50.0, resp.Prediction.ProbPositive, 1e-6)
	assert.Equal(t, "High risk", resp.Prediction.Label)
}

func TestAssessIsDeterministic(t *testing.T) {
	r := testRouter(t, testArtifact())

	body := `{"values":{"Subtype":1,"NLR":2,"IL6":10,"CAR":0.5,"VitD":40,"FT4":20}}`
	first := postAssess(r, body)
	require.Equal(t, http.StatusOK, first.Code)

	second := postAssess(r, body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestAssessValidation(t *testing.T) {
	r := testRouter(t, testArtifact())

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"values":`},
		{name: "unknown feature", body: `{"values":{"Subtype":0,"NLR":5,"IL6":5,"CAR":0.2,"VitD":35,"FT4":15,"CRP":3}}`},
		{name: "NLR above range", body: `{"values":{"Subtype":0,"NLR":12,"IL6":5,"CAR":0.2,"VitD":35,"FT4":15}}`},
		{name: "negative IL6", body: `{"values":{"Subtype":0,"NLR":5,"IL6":-1,"CAR":0.2,"VitD":35,"FT4":15}}`},
		{name: "fractional subtype", body: `{"values":{"Subtype":0.5,"NLR":5,"IL6":5,"CAR":0.2,"VitD":35,"FT4":15}}`},
		{name: "subtype out of label set", body: `{"values":{"Subtype":3,"NLR":5,"IL6":5,"CAR":0.2,"VitD":35,"FT4":15}}`},
		{name: "missing feature", body: `{"values":{"Subtype":0,"NLR":5,"IL6":5,"CAR":0.2,"VitD":35}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postAssess(r, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp types.AssessResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err == nil {
				assert.Nil(t, resp.Prediction, "rejected submissions carry no prediction")
			}
		})
	}
}

func TestAssessRequiresJSONContentType(t *testing.T) {
	r := testRouter(t, testArtifact())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/assess",
		bytes.NewBufferString("Subtype=0&NLR=5"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestAssessShapeErrorSkipsExplanation(t *testing.T) {
	// Three probability columns slip past artifact validation and must be
	// rejected at prediction time, before any explanation is attempted.
	a := testArtifact()
	a.Trees = []model.TreeSpec{
		{
			ChildrenLeft:  []int{-1},
			ChildrenRight: []int{-1},
			Feature:       []int{-1},
			Threshold:     []float64{0},
			Values:        [][]float64{{0.2, 0.3, 0.5}},
		},
	}
	r := testRouter(t, a)

	body := `{"values":{"Subtype":0,"NLR":5,"IL6":5,"CAR":0.2,"VitD":35,"FT4":15}}`
	w := postAssess(r, body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotContains(t, w.Body.String(), "bars")
	assert.Contains(t, w.Body.String(), "prediction")
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(t, testArtifact())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	modelInfo, ok := body["model"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), modelInfo["num_trees"])
	assert.Equal(t, float64(6), modelInfo["num_features"])
}

func TestFeaturesEndpoint(t *testing.T) {
	r := testRouter(t, testArtifact())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/features", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Features []struct {
			ID     string   `json:"id"`
			Kind   string   `json:"kind"`
			Labels []string `json:"labels"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Features, 6)

	assert.Equal(t, "Subtype", body.Features[0].ID)
	assert.Equal(t, "categorical", body.Features[0].Kind)
	assert.Len(t, body.Features[0].Labels, 3)
	assert.Equal(t, "FT4", body.Features[5].ID)
}

func TestRepeatSubmissionServedFromCache(t *testing.T) {
	r := testRouter(t, testArtifact())

	body := `{"values":{"Subtype":0,"NLR":2,"IL6":5,"CAR":0.2,"VitD":40,"FT4":15}}`
	for i := 0; i < 3; i++ {
		w := postAssess(r, body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, float64(2), stats["cache_hits"])
	assert.Equal(t, float64(1), stats["cache_misses"])
	assert.Equal(t, float64(1), stats["assessments"], "cached replies skip the pipeline")
}

func TestCacheStatsEndpoint(t *testing.T) {
	r := testRouter(t, testArtifact())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "total_items")
}

func TestIndexPageServed(t *testing.T) {
	r := testRouter(t, testArtifact())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "assess-form")
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders(t *testing.T) {
	r := testRouter(t, testArtifact())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestValidateValues(t *testing.T) {
	assert.NoError(t, validateValues(map[string]float64{"NLR": 5}))
	assert.Error(t, validateValues(map[string]float64{"CRP": 3}))
	assert.Error(t, validateValues(map[string]float64{"NLR": 11}))
}
