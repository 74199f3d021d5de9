package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/advisor-scrape/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold:  0.25,
		FallbackRateThreshold: 0.5,
		MinSamples:            5,
	})

	snap := &MetricsSnapshot{
		Total:         100,
		Succeeded:     95,
		Failed:        5,
		FailRate:      0.05,
		FallbackRate:  0.1,
		LookbackHours: 24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.25,
		MinSamples:           5,
	})

	snap := &MetricsSnapshot{
		Total:         20,
		Succeeded:     12,
		Failed:        8,
		FailRate:      0.4,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Contains(t, alerts[0].Message, "8 failed / 20")
}

func TestAlerter_Evaluate_FallbackRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold:  0.25,
		FallbackRateThreshold: 0.5,
		MinSamples:            5,
	})

	snap := &MetricsSnapshot{
		Total:         10,
		Succeeded:     10,
		FallbackRate:  0.8,
		LookbackHours: 6,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFallbackRate, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "80.0%")
}

func TestAlerter_Evaluate_FallbackDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	snap := &MetricsSnapshot{Total: 10, Succeeded: 10, FallbackRate: 1.0}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_CostOverrun(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.25,
		CostThresholdUSD:     10.0,
		MinSamples:           5,
	})

	snap := &MetricsSnapshot{
		Total:            500,
		Succeeded:        500,
		EstimatedCostUSD: 25.0,
		LookbackHours:    24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCostOverrun, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "$25.00")
}

func TestAlerter_Evaluate_ZeroCostThreshold(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.25,
		CostThresholdUSD:     0, // disabled
	})

	snap := &MetricsSnapshot{Total: 10, Succeeded: 10, EstimatedCostUSD: 999.0}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold:  0.1,
		FallbackRateThreshold: 0.5,
		CostThresholdUSD:      1.0,
		MinSamples:            5,
	})

	snap := &MetricsSnapshot{
		Total:            20,
		Succeeded:        10,
		Failed:           10,
		FailRate:         0.5,
		FallbackRate:     0.9,
		EstimatedCostUSD: 3.0,
		LookbackHours:    24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 3)
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
	assert.Equal(t, AlertFallbackRate, alerts[1].Type)
	assert.Equal(t, AlertCostOverrun, alerts[2].Type)
}

func TestAlerter_Evaluate_MinimumSamplesRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		MinSamples:           5,
	})

	// Only 3 fetches, below the minimum for any alert.
	snap := &MetricsSnapshot{
		Total:         3,
		Succeeded:     1,
		Failed:        2,
		FailRate:      0.666,
		LookbackHours: 24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_EmptyWindow(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.Empty(t, a.Evaluate(&MetricsSnapshot{}))
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertFallbackRate, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertFailureRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "http://example.com",
	})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}
