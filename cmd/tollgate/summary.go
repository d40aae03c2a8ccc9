package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/traffic"
)

// topOffenders is the number of repeat plates listed in a summary.
const topOffenders = 5

// ticketSummary aggregates a set of tickets.
type ticketSummary struct {
	Tickets   int            `json:"tickets"`
	ByKind    map[string]int `json:"by_kind"`
	ByBand    map[string]int `json:"by_band"`
	ByType    map[string]int `json:"by_vehicle_type"`
	Expired   expiredCounts  `json:"expired_documents"`
	Clamped   int            `json:"clamped"`
	Fines     fineSummary    `json:"fines"`
	Speed     speedSummary   `json:"speed"`
	Offenders []offender     `json:"repeat_offenders"`
}

type expiredCounts struct {
	STNK int `json:"stnk"`
	SIM  int `json:"sim"`
	Both int `json:"both"`
}

type fineSummary struct {
	Total decimal.Decimal `json:"total"`
	Mean  decimal.Decimal `json:"mean"`
	Max   decimal.Decimal `json:"max"`
}

type speedSummary struct {
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P85  float64 `json:"p85"`
	P95  float64 `json:"p95"`
	Max  float64 `json:"max"`
}

type offender struct {
	Plate   string          `json:"license_plate"`
	Tickets int             `json:"tickets"`
	Fines   decimal.Decimal `json:"fines"`
}

// summarize aggregates list. Speed percentiles use the empirical
// distribution of ticketed speeds.
func summarize(list []*traffic.Ticket) ticketSummary {
	s := ticketSummary{
		Tickets: len(list),
		ByKind:  make(map[string]int),
		ByBand:  make(map[string]int),
		ByType:  make(map[string]int),
		Fines: fineSummary{
			Total: decimal.Zero,
			Mean:  decimal.Zero,
			Max:   decimal.Zero,
		},
	}
	if len(list) == 0 {
		return s
	}

	speeds := make([]float64, 0, len(list))
	plates := make(map[string]*offender)
	for _, t := range list {
		s.ByKind[string(t.Kind)]++
		s.ByBand[t.Band]++
		s.ByType[string(t.VehicleType)]++
		switch {
		case !t.STNKActive && !t.SIMActive:
			s.Expired.Both++
			s.Expired.STNK++
			s.Expired.SIM++
		case !t.STNKActive:
			s.Expired.STNK++
		case !t.SIMActive:
			s.Expired.SIM++
		}
		if t.Clamped {
			s.Clamped++
		}

		s.Fines.Total = s.Fines.Total.Add(t.TotalFine)
		if t.TotalFine.GreaterThan(s.Fines.Max) {
			s.Fines.Max = t.TotalFine
		}
		speeds = append(speeds, t.Speed)

		o, ok := plates[t.LicensePlate]
		if !ok {
			o = &offender{Plate: t.LicensePlate, Fines: decimal.Zero}
			plates[t.LicensePlate] = o
		}
		o.Tickets++
		o.Fines = o.Fines.Add(t.TotalFine)
	}
	s.Fines.Mean = s.Fines.Total.Div(decimal.NewFromInt(int64(len(list)))).Round(2)

	sort.Float64s(speeds)
	s.Speed = speedSummary{
		Mean: stat.Mean(speeds, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, speeds, nil),
		P85:  stat.Quantile(0.85, stat.Empirical, speeds, nil),
		P95:  stat.Quantile(0.95, stat.Empirical, speeds, nil),
		Max:  speeds[len(speeds)-1],
	}

	for _, o := range plates {
		if o.Tickets > 1 {
			s.Offenders = append(s.Offenders, *o)
		}
	}
	sort.Slice(s.Offenders, func(i, j int) bool {
		a, b := s.Offenders[i], s.Offenders[j]
		if a.Tickets != b.Tickets {
			return a.Tickets > b.Tickets
		}
		return a.Plate < b.Plate
	})
	if len(s.Offenders) > topOffenders {
		s.Offenders = s.Offenders[:topOffenders]
	}
	return s
}

// Header and Rows render the summary as a field table.
func (s ticketSummary) Header() []string { return fieldTable{}.Header() }

func (s ticketSummary) Rows() [][]string {
	t := fieldTable{
		{"tickets", strconv.Itoa(s.Tickets)},
	}
	t = append(t, countFields("kind", s.ByKind)...)
	t = append(t, countFields("band", s.ByBand)...)
	t = append(t, countFields("type", s.ByType)...)
	t = append(t,
		[2]string{"expired.stnk", strconv.Itoa(s.Expired.STNK)},
		[2]string{"expired.sim", strconv.Itoa(s.Expired.SIM)},
		[2]string{"expired.both", strconv.Itoa(s.Expired.Both)},
		[2]string{"clamped", strconv.Itoa(s.Clamped)},
		[2]string{"fines.total", s.Fines.Total.StringFixed(2)},
		[2]string{"fines.mean", s.Fines.Mean.StringFixed(2)},
		[2]string{"fines.max", s.Fines.Max.StringFixed(2)},
		[2]string{"speed.mean", formatSpeed(s.Speed.Mean)},
		[2]string{"speed.p50", formatSpeed(s.Speed.P50)},
		[2]string{"speed.p85", formatSpeed(s.Speed.P85)},
		[2]string{"speed.p95", formatSpeed(s.Speed.P95)},
		[2]string{"speed.max", formatSpeed(s.Speed.Max)},
	)
	for _, o := range s.Offenders {
		t = append(t, [2]string{"offender." + o.Plate, fmt.Sprintf("%d tickets, %s", o.Tickets, o.Fines.StringFixed(2))})
	}
	return t.Rows()
}

func countFields(prefix string, counts map[string]int) fieldTable {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := make(fieldTable, 0, len(keys))
	for _, k := range keys {
		t = append(t, [2]string{prefix + "." + k, strconv.Itoa(counts[k])})
	}
	return t
}

func summarizeTickets(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(cmd, ticketFlags.filter)
	if err != nil {
		return err
	}

	_, store, err := openTickets()
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := fetchAll(cmd.Context(), store, q, nil)
	if err != nil {
		return cli.NewCommandError("tickets summary", err)
	}
	s := summarize(list)
	return render(cmd.OutOrStdout(), ticketFlags.summaryOutput, s, s)
}
