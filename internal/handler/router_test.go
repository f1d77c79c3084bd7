package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/config"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
	v1 "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/handler/v1"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/service"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/auth"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/metrics"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App: config.AppConfig{Name: "medintake", Environment: "test"},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         time.Hour,
		},
	}
	log := zap.NewNop()
	m := metrics.NewCollector("router_test", prometheus.NewRegistry())
	nobody := auth.IdentityProviderFunc(func(ctx context.Context) (*domain.Identity, bool) { return nil, false })

	ingestion := service.NewIngestionService(nobody, nil, nil, nil, m, service.IngestionOptions{}, log)
	records := service.NewMedicalRecordService(nil, nil, log)
	h := v1.NewMedicalRecordHandler(ingestion, records, service.SelectionPolicy{Accepted: mr.DefaultAcceptedMediaTypes()}, false, log)

	return NewRouter(cfg, RouterDeps{Records: h, Identity: nobody, Metrics: m, Log: log})
}

func TestRouter_Healthz(t *testing.T) {
	r := testRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_ReadRoutesRequireIdentity(t *testing.T) {
	r := testRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-1/records", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	r := testRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
