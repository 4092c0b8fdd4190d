package bootstrap //nolint:testpackage // Testing internal wiring requires same package access

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infragin "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/channel"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/config"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

func testConfig() *config.Config {
	return &config.Config{
		Service:   config.ServiceConfig{Name: "pricewatch", Version: "test"},
		OpsServer: config.OpsServerConfig{Enabled: true, Port: 8095},
	}
}

func TestSetupOpsServer_Disabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.OpsServer.Enabled = false

	assert.Nil(t, SetupOpsServer(cfg, infralogger.NewNop(), &DatabaseComponents{}, nil, prometheus.NewRegistry()))
}

func TestSetupOpsServer_HealthPingsDatabase(t *testing.T) {
	t.Parallel()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DatabaseComponents{DB: sqlx.NewDb(mockDB, "postgres")}
	server := SetupOpsServer(testConfig(), infralogger.NewNop(), db, nil, prometheus.NewRegistry())
	require.NotNil(t, server)

	mock.ExpectPing()
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)

	mock.ExpectPing().WillReturnError(errors.New("connection reset"))
	w = httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp infragin.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "connection reset", resp.Checks["database"].Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPropagator_WithoutPlatformIsNoop(t *testing.T) {
	t.Parallel()

	propagator := newPropagator(testConfig(), infralogger.NewNop())
	result := propagator.Propagate(context.Background(), &domain.Product{
		ID:           1,
		ChannelCodes: domain.ChannelCodes{"smartstore": "A1"},
	}, channel.Changes{})

	assert.False(t, result.AnyChannelUpdated)
	assert.Empty(t, result.Results)
}
