package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewJobMetrics(reg)
	job := "catalog.refresh"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.IncDropped(job)
	metrics.IncDropped(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "storefront_job_success_total", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "storefront_job_failure_total", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "storefront_job_dropped_total", "job", job); err != nil {
		t.Fatalf("fetch dropped: %v", err)
	} else if got != 2 {
		t.Fatalf("expected dropped=2, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "storefront_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestJobMetricsEmptyJobNameIsLabelledUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewJobMetrics(reg).IncSuccess("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_job_success_total", "job", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown=1, got %f (%v)", got, err)
	}
}

func TestNilRegistererYieldsNoopRecorders(t *testing.T) {
	jobs := NewJobMetrics(nil)
	jobs.IncSuccess("x")
	jobs.IncDropped("x")
	jobs.ObserveDuration("x", time.Second)

	checkout := NewCheckoutMetrics(nil)
	checkout.ObserveRun(CheckoutOutcomeComplete, time.Second)
	checkout.IncStoreResult(StoreResultSuccess)

	var nilJobs *JobMetrics
	nilJobs.IncFailure("x")
	var nilCheckout *CheckoutMetrics
	nilCheckout.IncStoreResult(StoreResultFailed)
}

func TestCheckoutMetricsRecordRunsAndStores(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)
	metrics.IncStoreResult(StoreResultSuccess)
	metrics.IncStoreResult(StoreResultFailed)
	metrics.IncStoreResult(StoreResultSuccess)
	metrics.ObserveRun(CheckoutOutcomeIncomplete, 1500*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, _ := fetchCounterValue(mfs, "storefront_checkout_store_results_total", "result", StoreResultSuccess); got != 2 {
		t.Fatalf("expected success=2, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "storefront_checkout_store_results_total", "result", StoreResultFailed); got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "storefront_checkout_runs_total", "outcome", CheckoutOutcomeIncomplete); got != 1 {
		t.Fatalf("expected incomplete=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "storefront_checkout_duration_seconds")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("expected a single duration series")
	}
	if sum := mf.GetMetric()[0].GetHistogram().GetSampleSum(); sum != 1.5 {
		t.Fatalf("expected duration sum 1.5, got %f", sum)
	}
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("GET", "/api/v1/{namespace}", 200, 250*time.Millisecond)
	m.Observe("GET", "/api/v1/{namespace}", 200, 250*time.Millisecond)
	m.Observe("POST", "", 500, time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "storefront_http_requests_total", "route", "/api/v1/{namespace}"); got != 2 {
		t.Fatalf("expected 2 requests on route, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "storefront_http_requests_total", "route", "unknown"); got != 1 {
		t.Fatalf("expected empty route to be labelled unknown, got %f", got)
	}
	if sum, _ := fetchHistogramSum(mfs, "storefront_http_request_duration_seconds", "method", "GET"); sum != 0.5 {
		t.Fatalf("expected GET duration sum 0.5, got %f", sum)
	}

	var nilMetrics *HTTPMetrics
	nilMetrics.Observe("GET", "/", 200, time.Millisecond)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
