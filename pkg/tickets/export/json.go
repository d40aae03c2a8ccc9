package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/traffic"
)

// JSONExporter exports tickets as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{
		Pretty: pretty,
	}
}

// Export writes tickets to w. An empty list is written as "[]".
func (e *JSONExporter) Export(ctx context.Context, list []*traffic.Ticket, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return tickets.NewExportError("json", len(list), err)
	}
	if list == nil {
		list = []*traffic.Ticket{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(list, "", "  ")
	} else {
		data, err = json.Marshal(list)
	}
	if err != nil {
		return tickets.NewExportError("json", len(list), err)
	}

	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return tickets.NewExportError("json", len(list), err)
	}
	return nil
}
