package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/traffic"
)

func sampleTickets() []*traffic.Ticket {
	issued := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return []*traffic.Ticket{
		{
			ID:                "t-1",
			VehicleID:         "v-1",
			LicensePlate:      "B 1234 XY",
			VehicleType:       traffic.VehicleCar,
			Kind:              traffic.KindSpeeding,
			Band:              "SPEED_HIGH_LEVEL_3",
			Speed:             125.5,
			SpeedLimitUsed:    100,
			BaseFine:          decimal.NewFromInt(75),
			PenaltyMultiplier: decimal.RequireFromString("1.4"),
			TotalFine:         decimal.NewFromInt(100),
			Clamped:           true,
			STNKActive:        false,
			SIMActive:         false,
			Location:          traffic.DefaultLocation,
			IssuedAt:          issued,
			Status:            traffic.TicketPending,
		},
		{
			ID:                "t-2",
			VehicleID:         "v-2",
			LicensePlate:      "D 42 AB",
			VehicleType:       traffic.VehicleTruck,
			Kind:              traffic.KindTooSlow,
			Band:              "SPEED_LOW_MILD",
			Speed:             55,
			SpeedLimitUsed:    80,
			BaseFine:          decimal.NewFromInt(20),
			PenaltyMultiplier: decimal.NewFromInt(1),
			TotalFine:         decimal.NewFromInt(20),
			STNKActive:        true,
			SIMActive:         true,
			Location:          traffic.DefaultLocation,
			IssuedAt:          issued.Add(time.Minute),
			Status:            traffic.TicketPending,
		},
	}
}

func TestJSONExporter_Export(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		var buf bytes.Buffer
		if err := NewJSONExporter(pretty).Export(context.Background(), sampleTickets(), &buf); err != nil {
			t.Fatalf("Export(pretty=%v) failed: %v", pretty, err)
		}
		if pretty != strings.Contains(buf.String(), "\n  ") {
			t.Errorf("pretty=%v: unexpected indentation in %q", pretty, buf.String())
		}

		var decoded []*traffic.Ticket
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not a JSON array: %v", err)
		}
		if len(decoded) != 2 {
			t.Fatalf("decoded %d tickets, want 2", len(decoded))
		}
		if !decoded[0].TotalFine.Equal(decimal.NewFromInt(100)) || !decoded[0].Clamped {
			t.Errorf("unexpected first ticket: %+v", decoded[0])
		}
	}
}

func TestJSONExporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty export = %q, want []", got)
	}
}

func TestCSVExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), sampleTickets(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d rows", len(rows))
	}
	if rows[0][0] != "ticket_id" || len(rows[0]) != len(Header()) {
		t.Errorf("unexpected header: %v", rows[0])
	}

	first := rows[1]
	want := map[int]string{
		0:  "t-1",
		5:  "SPEED_HIGH_LEVEL_3",
		6:  "125.5",
		9:  "1.4",
		10: "100",
		11: "true",
		15: "2026-03-14T09:30:00Z",
		16: "PENDING",
	}
	for col, v := range want {
		if first[col] != v {
			t.Errorf("column %s = %q, want %q", Header()[col], first[col], v)
		}
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(context.Background(), sampleTickets()[:1], &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if strings.HasPrefix(buf.String(), "ticket_id") {
		t.Error("header written although IncludeHeader is false")
	}
}

func TestExport_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, exp := range []tickets.Exporter{NewJSONExporter(false), NewCSVExporter(true)} {
		err := exp.Export(ctx, sampleTickets(), &bytes.Buffer{})
		var exportErr *tickets.ExportError
		if !errors.As(err, &exportErr) || !errors.Is(err, context.Canceled) {
			t.Errorf("%T: expected ExportError wrapping context.Canceled, got %v", exp, err)
		}
	}
}

func TestNew(t *testing.T) {
	cfg := &config.ExportConfig{JSONPretty: true, CSVHeader: false}

	exp, err := New("json", cfg)
	if err != nil {
		t.Fatalf("New(json) failed: %v", err)
	}
	if j, ok := exp.(*JSONExporter); !ok || !j.Pretty {
		t.Errorf("New(json) = %#v", exp)
	}

	exp, err = New("csv", cfg)
	if err != nil {
		t.Fatalf("New(csv) failed: %v", err)
	}
	if c, ok := exp.(*CSVExporter); !ok || c.IncludeHeader {
		t.Errorf("New(csv) = %#v", exp)
	}

	if _, err := New("xml", cfg); err == nil {
		t.Error("New(xml) should fail")
	}
}
