package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/traffic"
)

func TestNew_Disabled(t *testing.T) {
	tr, err := New(context.Background(), &config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Enabled() {
		t.Error("tracer should be disabled")
	}

	_, span := tr.Start(context.Background(), SpanVehicleCheck)
	span.End()
	if span.SpanContext().IsValid() {
		t.Error("noop span should have an invalid span context")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(context.Background(), nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestRecordResult(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tr := NewWithProvider(provider)
	defer tr.Shutdown(context.Background())

	v := &traffic.Vehicle{ID: "v1", LicensePlate: "B 1 XY", Speed: 121, Type: traffic.VehicleCar, Timestamp: time.Now()}

	_, span := tr.Start(context.Background(), SpanVehicleCheck)
	span.SetAttributes(VehicleAttributes(v, 3)...)
	RecordResult(span, &traffic.CheckResult{
		Kind:        traffic.KindSpeeding,
		IsViolation: true,
		Ticket:      &traffic.Ticket{Band: "SPEED_HIGH_LEVEL_3", TotalFine: decimal.NewFromInt(75)},
	}, nil)
	span.End()

	_, failed := tr.Start(context.Background(), SpanVehicleCheck)
	RecordResult(failed, nil, errors.New("boom"))
	failed.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["check.verdict"] != "SPEEDING" || attrs["ticket.total_fine"] != "75" || attrs["pipeline.worker"] != "3" {
		t.Errorf("unexpected attributes: %v", attrs)
	}
	if spans[1].Status.Code != codes.Error {
		t.Errorf("failed span status = %v, want Error", spans[1].Status.Code)
	}
}
