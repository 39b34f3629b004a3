package analysis

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/cycler-cli/internal/model"
)

const (
	ruleWide   = 60
	ruleNarrow = 30
)

// Report renders every stored result as text, running all analyses first
// when none have been run. v may be nil.
func (a *Analyzer) Report(ctx context.Context, v *model.ValidationResult) (string, error) {
	if len(a.Results()) == 0 {
		if _, err := a.RunAll(ctx); err != nil {
			return "", err
		}
	}
	results := a.Results()
	p := message.NewPrinter(language.English)

	var b strings.Builder
	line := func(format string, args ...any) {
		b.WriteString(p.Sprintf(format, args...))
		b.WriteByte('\n')
	}

	line("%s", strings.Repeat("=", ruleWide))
	line("BATTERY DATA ANALYSIS REPORT")
	line("%s", strings.Repeat("=", ruleWide))
	line("Generated: %s", a.now().Format("2006-01-02 15:04:05"))
	line("Data Format: %s", a.sd.Format)
	line("Total Records: %d", a.data().Len())
	line("")

	if v != nil {
		status := "INVALID"
		if v.IsValid {
			status = "VALID"
		}
		line("DATA QUALITY ASSESSMENT")
		line("%s", strings.Repeat("-", ruleNarrow))
		line("Overall Status: %s", status)
		line("Quality Score: %.1f%%", v.QualityScore)
		line("Issues Found: %d", len(v.Issues))
		line("Warnings: %d", len(v.Warnings))
		line("")
		if len(v.Issues) > 0 {
			line("Critical Issues:")
			for _, issue := range v.Issues {
				line("  • %s", issue)
			}
			line("")
		}
	}

	for _, kind := range reportOrder {
		res, ok := results[kind]
		if !ok {
			continue
		}
		line("%s", strings.ToUpper(strings.ReplaceAll(kind, "_", " ")))
		line("%s", strings.Repeat("-", ruleNarrow))
		switch r := res.Results.(type) {
		case *BasicStats:
			line("Time Span: %s hours", optional(r.General.TimeSpanHours, "%.2f"))
			if r.General.UniqueCycles != nil {
				line("Unique Cycles: %d", *r.General.UniqueCycles)
			} else {
				line("Unique Cycles: N/A")
			}
			for _, col := range keyVariables {
				if d, ok := r.Descriptive[col]; ok {
					line("%s: Mean=%.3f, Std=%.3f", col, d.Mean, d.Std)
				}
			}
		case *Electrochem:
			if r.Voltage != nil {
				line("Voltage Range: %.3f-%.3f V", r.Voltage.MinVoltage, r.Voltage.MaxVoltage)
			}
			if r.Current != nil {
				line("Charge/Discharge/Rest: %.1f%%/%.1f%%/%.1f%%",
					r.Current.ChargeDurationPct, r.Current.DischargeDurationPct, r.Current.RestDurationPct)
			}
			if r.Cycles != nil {
				line("Cycles Analyzed: %d", r.Cycles.TotalCyclesAnalyzed)
			}
		case *Anomalies:
			total := 0
			for _, o := range r.Outliers {
				total += o.ZScoreOutliers
			}
			line("Total Statistical Outliers: %d", total)
			if r.VoltageJumps != nil {
				line("Voltage Jumps: %d", r.VoltageJumps.JumpsDetected)
			}
		case *Performance:
			if r.Efficiency != nil && r.Efficiency.Coulombic != nil {
				line("Coulombic Efficiency: %.2f%%", r.Efficiency.Coulombic.Mean)
			}
			if r.Temperature != nil && r.Temperature.StabilityScore != nil {
				line("Temperature Stability: %.1f", *r.Temperature.StabilityScore)
			}
		case *FadeReport:
			for _, f := range r.Channels {
				line("Channel %s: %.3f -> %.3f Ah, fade %.2f%% over %d cycles",
					f.Channel, f.InitialAh, f.FinalAh, f.TotalFadePct, f.Cycles)
			}
		}
		line("")
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func optional(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}
