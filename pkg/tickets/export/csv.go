package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/traffic"
)

// CSVExporter exports tickets in CSV format.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

// Header returns the CSV column names in row order.
func Header() []string {
	return []string{
		"ticket_id", "vehicle_id", "license_plate", "vehicle_type",
		"violation_type", "band", "speed", "speed_limit",
		"base_fine", "penalty_multiplier", "total_fine", "clamped",
		"stnk_active", "sim_active", "location", "issued_at", "status",
	}
}

// Export writes tickets to w, one row per ticket.
func (e *CSVExporter) Export(ctx context.Context, list []*traffic.Ticket, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header()); err != nil {
			return tickets.NewExportError("csv", len(list), err)
		}
	}

	for i, t := range list {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return tickets.NewExportError("csv", len(list), err)
			}
		}
		if err := writer.Write(ticketToRow(t)); err != nil {
			return tickets.NewExportError("csv", len(list), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return tickets.NewExportError("csv", len(list), err)
	}
	return nil
}

func ticketToRow(t *traffic.Ticket) []string {
	formatFloat := func(f float64) string {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	return []string{
		t.ID,
		t.VehicleID,
		t.LicensePlate,
		string(t.VehicleType),
		string(t.Kind),
		t.Band,
		formatFloat(t.Speed),
		formatFloat(t.SpeedLimitUsed),
		t.BaseFine.String(),
		t.PenaltyMultiplier.String(),
		t.TotalFine.String(),
		strconv.FormatBool(t.Clamped),
		strconv.FormatBool(t.STNKActive),
		strconv.FormatBool(t.SIMActive),
		t.Location,
		t.IssuedAt.UTC().Format(time.RFC3339),
		string(t.Status),
	}
}
