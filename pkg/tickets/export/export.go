package export

import (
	"fmt"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/tickets"
)

// New returns the exporter for format ("json" or "csv").
func New(format string, cfg *config.ExportConfig) (tickets.Exporter, error) {
	switch format {
	case "json":
		return NewJSONExporter(cfg.JSONPretty), nil
	case "csv":
		return NewCSVExporter(cfg.CSVHeader), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s (must be 'json' or 'csv')", format)
	}
}
