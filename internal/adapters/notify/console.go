package notify

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyoracle/internal/calibration"
	"github.com/alejandrodnm/polyoracle/internal/execution"
)

// Console escribe el estado del bot a stdout: una línea compacta por ciclo
// y reportes en tabla bajo demanda (--report).
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// CycleStatus resume lo que pasó en un ciclo de trading.
type CycleStatus struct {
	Mode            string // "PAPER" o "LIVE"
	MarketsScanned  int
	ForecastsMade   int
	TradesExecuted  int
	Skipped         int
	MarketsResolved int
	ResolutionPnL   float64
	Bankroll        float64
	Warnings        []string
}

// PrintCycleStatus imprime el resumen del ciclo en una línea.
func (c *Console) PrintCycleStatus(s CycleStatus) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s][%s] %d mkts | %d forecasts | %d trades | %d skip | bank $%.2f",
		now, s.Mode, s.MarketsScanned, s.ForecastsMade, s.TradesExecuted, s.Skipped, s.Bankroll)

	if s.MarketsResolved > 0 {
		fmt.Fprintf(&sb, " | %d resolved %+.2f", s.MarketsResolved, s.ResolutionPnL)
	}

	for i, warn := range s.Warnings {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&sb, "\n  >> %s", warn)
	}

	fmt.Fprintln(c.out, sb.String())
}

// PrintPerformanceReport imprime el reporte de calibración: Brier scores
// agregados, win rate y el desglose por categoría.
func (c *Console) PrintPerformanceReport(s calibration.PerformanceSummary) {
	if s.ResolvedForecasts == 0 {
		fmt.Fprintln(c.out, "\n  No resolved forecasts yet. Let the bot run until markets resolve.")
		return
	}

	fmt.Fprintf(c.out, "\n=== FORECAST PERFORMANCE (%d resolved / %d total, %d pending) ===\n",
		s.ResolvedForecasts, s.TotalForecasts, s.PendingForecasts)

	fmt.Fprintf(c.out, "  Brier raw:        %.4f\n", s.BrierRaw)
	fmt.Fprintf(c.out, "  Brier calibrated: %.4f  (improvement %+.4f)\n", s.BrierCalibrated, s.Improvement)
	fmt.Fprintf(c.out, "  Brier market:     %.4f  (value added %+.4f)\n", s.MarketBrier, s.ValueAddedVsMarket)
	fmt.Fprintf(c.out, "  Win rate:         %.1f%%   Avg edge: %.4f\n", s.WinRate*100, s.AvgEdge)

	if len(s.ByCategory) == 0 {
		return
	}

	categories := make([]string, 0, len(s.ByCategory))
	for cat := range s.ByCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	fmt.Fprintln(c.out)
	table := tablewriter.NewWriter(c.out)
	table.Header("Category", "N", "Brier raw", "Brier cal", "Improvement")

	for _, cat := range categories {
		perf := s.ByCategory[cat]
		table.Append(
			cat,
			fmt.Sprintf("%d", perf.Count),
			fmt.Sprintf("%.4f", perf.BrierRaw),
			fmt.Sprintf("%.4f", perf.BrierCalibrated),
			fmt.Sprintf("%+.4f", perf.Improvement),
		)
	}

	table.Render()
	fmt.Fprintln(c.out, "  Improvement > 0 = la calibración mejora el forecast crudo")
}

// PrintCalibrationCurve imprime la curva de fiabilidad bucketed: predicción
// media vs frecuencia real por bucket.
func (c *Console) PrintCalibrationCurve(curve []calibration.CurveBucket) {
	if len(curve) == 0 {
		fmt.Fprintln(c.out, "\n  No calibration curve data yet.")
		return
	}

	fmt.Fprintln(c.out, "\n=== CALIBRATION CURVE — predicted vs actual ===")

	table := tablewriter.NewWriter(c.out)
	table.Header("Bucket", "Predicted", "Actual", "N", "Gap")

	for _, b := range curve {
		table.Append(
			b.Range,
			fmt.Sprintf("%.3f", b.PredictedMean),
			fmt.Sprintf("%.3f", b.ActualFreq),
			fmt.Sprintf("%d", b.Count),
			fmt.Sprintf("%+.3f", b.ActualFreq-b.PredictedMean),
		)
	}

	table.Render()
	fmt.Fprintln(c.out, "  Gap ≈ 0 en cada bucket = curva bien calibrada")
}

// PrintPortfolio imprime las posiciones abiertas y el estado de la cartera.
func (c *Console) PrintPortfolio(p execution.PortfolioSummary) {
	fmt.Fprintf(c.out, "\n=== PORTFOLIO — bank $%.2f | today %+.2f | total value $%.2f ===\n",
		p.CurrentBankroll, p.RealizedPnLToday, p.TotalValue)

	if len(p.Positions) == 0 {
		fmt.Fprintln(c.out, "  No open positions.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Dir", "Shares", "Cost", "Avg entry", "Price", "uPnL", "uPnL %")

	for _, pos := range p.Positions {
		table.Append(
			truncate(pos.Position.MarketID, 24),
			string(pos.Position.Direction),
			fmt.Sprintf("%.2f", pos.Position.NumShares),
			fmt.Sprintf("$%.2f", pos.Position.AmountUSD),
			fmt.Sprintf("%.4f", pos.Position.AvgEntryPrice),
			fmt.Sprintf("%.4f", pos.Position.CurrentPrice),
			fmt.Sprintf("%+.2f", pos.UnrealizedPnL),
			fmt.Sprintf("%+.1f%%", pos.UnrealizedPnLPct*100),
		)
	}

	table.Render()
	fmt.Fprintf(c.out, "  Unrealized P&L: %+.2f\n", p.TotalUnrealizedPnL)
}

// truncate corta s a max caracteres con "..".
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 2 {
		return s[:max]
	}
	return s[:max-2] + ".."
}
