package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/pipeline"
	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/stats"
	"mercator-hq/tollgate/pkg/traffic"
)

const tableTime = "2006-01-02 15:04:05"

// ticketTable renders tickets one per row.
type ticketTable []*traffic.Ticket

func (t ticketTable) Header() []string {
	return []string{"ID", "ISSUED", "PLATE", "TYPE", "KIND", "BAND", "SPEED", "LIMIT", "FINE", "STNK", "SIM"}
}

func (t ticketTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, tk := range t {
		rows = append(rows, []string{
			shortID(tk.ID),
			tk.IssuedAt.Local().Format(tableTime),
			tk.LicensePlate,
			string(tk.VehicleType),
			string(tk.Kind),
			tk.Band,
			formatSpeed(tk.Speed),
			formatSpeed(tk.SpeedLimitUsed),
			tk.TotalFine.StringFixed(2),
			activeMark(tk.STNKActive),
			activeMark(tk.SIMActive),
		})
	}
	return rows
}

// fieldTable renders name/value pairs in insertion order.
type fieldTable [][2]string

func (t fieldTable) Header() []string { return []string{"FIELD", "VALUE"} }

func (t fieldTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, kv := range t {
		rows[i] = []string{kv[0], kv[1]}
	}
	return rows
}

func statsFields(st traffic.Stats) fieldTable {
	return fieldTable{
		{"processed", strconv.FormatInt(st.TotalProcessed, 10)},
		{"violations", strconv.FormatInt(st.TotalViolations, 10)},
		{"too_slow", strconv.FormatInt(st.TooSlow, 10)},
		{"speeding", strconv.FormatInt(st.Speeding, 10)},
		{"violation_rate", fmt.Sprintf("%.1f%%", st.ViolationRate)},
		{"avg_speed", formatSpeed(st.AvgSpeed)},
		{"max_speed", formatSpeed(st.MaxSpeed)},
		{"total_fines", st.TotalFines.StringFixed(2)},
		{"rejected", strconv.FormatInt(st.Rejected, 10)},
		{"dropped", strconv.FormatInt(st.Dropped, 10)},
		{"terminated", strconv.FormatInt(st.Terminated, 10)},
		{"abandoned", strconv.FormatInt(st.Abandoned, 10)},
		{"batches", strconv.FormatInt(st.Batches, 10)},
	}
}

// historyTable renders saved statistics snapshots.
type historyTable []stats.Snapshot

func (t historyTable) Header() []string {
	return []string{"TAKEN", "PROCESSED", "VIOLATIONS", "RATE", "AVG", "MAX", "FINES", "FINAL"}
}

func (t historyTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		final := ""
		if s.Final {
			final = "yes"
		}
		rows = append(rows, []string{
			s.TakenAt.Local().Format(tableTime),
			strconv.FormatInt(s.Stats.TotalProcessed, 10),
			strconv.FormatInt(s.Stats.TotalViolations, 10),
			fmt.Sprintf("%.1f%%", s.Stats.ViolationRate),
			formatSpeed(s.Stats.AvgSpeed),
			formatSpeed(s.Stats.MaxSpeed),
			s.Stats.TotalFines.StringFixed(2),
			final,
		})
	}
	return rows
}

// boardTable renders one row per worker slot, ordered by worker id.
type boardTable struct {
	view pipeline.BoardView
	now  time.Time
}

func (t boardTable) Header() []string {
	return []string{"WORKER", "STATE", "VEHICLE", "PLATE", "TYPE", "SPEED", "FOR", "LAST"}
}

func (t boardTable) Rows() [][]string {
	ids := make([]int, 0, len(t.view.Workers))
	for key := range t.view.Workers {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		key := strconv.Itoa(id)
		row := []string{key, string(traffic.SlotIdle), "-", "-", "-", "-", "-", "-"}
		if s := t.view.Workers[key]; s != nil {
			row[1] = string(s.State)
			row[2] = s.Vehicle.ID
			row[3] = s.Vehicle.LicensePlate
			row[4] = string(s.Vehicle.Type)
			row[5] = formatSpeed(s.Vehicle.Speed)
			row[6] = t.now.Sub(s.Since).Truncate(time.Millisecond).String()
		}
		if last := t.view.Last[key]; last != nil {
			row[7] = fmt.Sprintf("%s %s", last.Vehicle.LicensePlate, last.Kind)
		}
		rows = append(rows, row)
	}
	return rows
}

// bandTable renders the fine schedule.
type bandTable struct {
	rules *rules.RuleConfig
}

func (t bandTable) Header() []string { return []string{"KIND", "BAND", "MIN", "MAX", "FINE"} }

func (t bandTable) Rows() [][]string {
	var rows [][]string
	for _, kind := range []traffic.ViolationKind{traffic.KindTooSlow, traffic.KindSpeeding} {
		for _, b := range t.rules.Bands(kind) {
			rows = append(rows, []string{
				string(kind),
				b.Name,
				formatSpeed(b.Min),
				formatSpeed(b.Max),
				b.Fine.StringFixed(2),
			})
		}
	}
	return rows
}

func formatSpeed(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func activeMark(active bool) string {
	if active {
		return "active"
	}
	return "EXPIRED"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// render writes raw as JSON, or table as aligned columns for the text and
// table formats.
func render(w io.Writer, format string, table cli.Table, raw any) error {
	f, err := cli.ParseFormat(format)
	if err != nil {
		return err
	}
	if f == cli.FormatJSON {
		return cli.NewFormatter(f).FormatTo(w, raw)
	}
	return cli.NewFormatter(cli.FormatTable).FormatTo(w, table)
}
