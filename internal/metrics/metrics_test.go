package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric any
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"HTTPRequestsInFlight", HTTPRequestsInFlight},
		{"CatalogRequestsTotal", CatalogRequestsTotal},
		{"CatalogRequestDuration", CatalogRequestDuration},
		{"TokenRefreshesTotal", TokenRefreshesTotal},
		{"MigrationsTotal", MigrationsTotal},
		{"MigrationsRunning", MigrationsRunning},
		{"TracksProcessedTotal", TracksProcessedTotal},
		{"MatchScore", MatchScore},
		{"MigrationDuration", MigrationDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestCounterLabels(t *testing.T) {
	before := testutil.ToFloat64(TracksProcessedTotal.WithLabelValues("migrated"))
	TracksProcessedTotal.WithLabelValues("migrated").Inc()

	if got := testutil.ToFloat64(TracksProcessedTotal.WithLabelValues("migrated")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}
