// Package export writes held-out evaluation rows for offline inspection.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/evbill/core/model"
	"github.com/kilianp07/evbill/core/pipeline"
)

// Row is the flattened form of an evaluation row.
type Row struct {
	model.Request
	ActualUSD    float64 `json:"actual_usd"`
	PredictedUSD float64 `json:"predicted_usd"`
	ErrorUSD     float64 `json:"error_usd"`
}

// Flatten converts pipeline rows.
func Flatten(rows []pipeline.Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{
			Request:      r.Session.Request,
			ActualUSD:    r.Session.CostUSD,
			PredictedUSD: r.Predicted,
			ErrorUSD:     r.Predicted - r.Session.CostUSD,
		}
	}
	return out
}

// WriteJSON writes the evaluation rows to w in JSON format.
func WriteJSON(w io.Writer, rows []pipeline.Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Flatten(rows))
}

var csvHeader = []string{
	model.ColumnEnergy,
	model.ColumnDuration,
	model.ColumnRate,
	model.ColumnChargerType,
	model.ColumnTimeOfDay,
	model.ColumnUserType,
	model.ColumnTemperature,
	model.ColumnCost,
	"Predicted Cost (USD)",
	"Error (USD)",
}

// WriteCSV writes the evaluation rows to w in CSV format using the dataset
// headers followed by the prediction columns.
func WriteCSV(w io.Writer, rows []pipeline.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range Flatten(rows) {
		rec := []string{
			f(r.EnergyKWh),
			f(r.DurationHours),
			f(r.RateKW),
			r.ChargerType,
			r.TimeOfDay,
			r.UserType,
			f(r.TemperatureC),
			f(r.ActualUSD),
			f(r.PredictedUSD),
			f(r.ErrorUSD),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteChart renders an actual versus predicted scatter plot, one series per
// charger type, as a standalone HTML page.
func WriteChart(w io.Writer, rep pipeline.Report) error {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Actual vs predicted charging cost",
			Subtitle: fmt.Sprintf("n=%d MAE=%.2f RMSE=%.2f R²=%.3f", rep.Rows, rep.MAE, rep.RMSE, rep.R2),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Actual (USD)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Predicted (USD)", Type: "value"}),
	)

	series := make(map[string][]opts.ScatterData, len(model.ChargerTypes))
	for _, r := range rep.Data {
		c := r.Session.ChargerType
		series[c] = append(series[c], opts.ScatterData{
			Value:      []interface{}{r.Session.CostUSD, r.Predicted},
			SymbolSize: 6,
		})
	}
	for _, c := range model.ChargerTypes {
		if pts, ok := series[c]; ok {
			sc.AddSeries(c, pts)
		}
	}

	if err := sc.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
