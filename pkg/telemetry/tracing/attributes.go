package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/tollgate/pkg/traffic"
)

// Span and attribute names used by the pipeline.
const (
	SpanVehicleCheck = "vehicle.check"

	AttrVehicleID   = attribute.Key("vehicle.id")
	AttrPlate       = attribute.Key("vehicle.plate")
	AttrVehicleType = attribute.Key("vehicle.type")
	AttrSpeed       = attribute.Key("vehicle.speed_kmh")
	AttrWorker      = attribute.Key("pipeline.worker")
	AttrVerdict     = attribute.Key("check.verdict")
	AttrBand        = attribute.Key("ticket.band")
	AttrFine        = attribute.Key("ticket.total_fine")
)

// VehicleAttributes returns the span attributes describing v.
func VehicleAttributes(v *traffic.Vehicle, worker int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrVehicleID.String(v.ID),
		AttrPlate.String(v.LicensePlate),
		AttrVehicleType.String(string(v.Type)),
		AttrSpeed.Float64(v.Speed),
		AttrWorker.Int(worker),
	}
}

// RecordResult annotates span with the outcome of a check.
func RecordResult(span trace.Span, res *traffic.CheckResult, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(AttrVerdict.String(string(res.Kind)))
	if res.Ticket != nil {
		span.SetAttributes(
			AttrBand.String(res.Ticket.Band),
			AttrFine.String(res.Ticket.TotalFine.String()),
		)
	}
	span.SetStatus(codes.Ok, "")
}
