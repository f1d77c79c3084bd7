package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/service"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/auth"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestContext_AssignsAndEchoesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestContext())
	var meta service.RequestMeta
	r.GET("/ping", func(c *gin.Context) {
		meta = service.RequestMetaFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 26, "ulid expected")
	assert.Equal(t, generated, meta.RequestID)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "client-supplied")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "client-supplied", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "client-supplied", meta.RequestID)
}

func TestAttachBearerToken(t *testing.T) {
	r := gin.New()
	r.Use(AttachBearerToken())
	var token string
	var found bool
	r.GET("/ping", func(c *gin.Context) {
		token, found = auth.BearerTokenFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "bearer abc.def.ghi")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, found)
	assert.Equal(t, "abc.def.ghi", token)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.False(t, found)
}

func TestRequireIdentity(t *testing.T) {
	caller := &domain.Identity{SubjectID: "user-1", Role: domain.RoleNurse}
	provider := auth.IdentityProviderFunc(func(ctx context.Context) (*domain.Identity, bool) {
		token, ok := auth.BearerTokenFrom(ctx)
		if !ok || token != "good" {
			return nil, false
		}
		return caller, true
	})

	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), AttachBearerToken(), RequireIdentity(provider))
	r.GET("/me", func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, identity.SubjectID)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	m := metrics.NewCollector("mw_test", prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/records/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records/def", nil))

	counter, err := m.RequestsTotal.GetMetricWithLabelValues(http.MethodGet, "/records/:id", "200")
	require.NoError(t, err)
	var out dto.Metric
	require.NoError(t, counter.Write(&out))
	assert.Equal(t, float64(2), out.GetCounter().GetValue())
}
