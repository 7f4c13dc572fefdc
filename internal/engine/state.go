package engine

import (
	"slices"
	"time"

	"github.com/yoockh/oscesim/internal/formatter"
	"github.com/yoockh/oscesim/internal/intent"
	"github.com/yoockh/oscesim/internal/models"
)

// reveal returns the clinical state after an allowed gated answer, and whether it changed.
// The input is never modified.
func reveal(dd models.DynamicData, c *models.Case, f formatter.Fact, now time.Time) (models.DynamicData, bool) {
	if !f.Found {
		return dd, false
	}

	out := models.DynamicData{
		Vitals:         dd.Vitals,
		Findings:       slices.Clone(dd.Findings),
		Investigations: slices.Clone(dd.Investigations),
	}

	switch {
	case f.Code == intent.CheckVitals:
		v := formatter.VitalsOf(c)
		if out.Vitals != nil && *out.Vitals == v {
			return dd, false
		}
		out.Vitals = &v
		return out, true

	case f.Code.IsExam():
		i := slices.IndexFunc(out.Findings, func(x models.Finding) bool { return x.System == f.Subject })
		if i >= 0 {
			if out.Findings[i].Finding == f.Text {
				return dd, false
			}
			out.Findings[i] = models.Finding{System: f.Subject, Finding: f.Text, At: now}
			return out, true
		}
		out.Findings = append(out.Findings, models.Finding{System: f.Subject, Finding: f.Text, At: now})
		return out, true

	case f.Code.IsInvestigation():
		i := slices.IndexFunc(out.Investigations, func(x models.InvestigationResult) bool { return x.Name == f.Subject })
		if i >= 0 {
			if out.Investigations[i].Result == f.Text {
				return dd, false
			}
			out.Investigations[i] = models.InvestigationResult{Name: f.Subject, Result: f.Text, At: now}
			return out, true
		}
		out.Investigations = append(out.Investigations, models.InvestigationResult{Name: f.Subject, Result: f.Text, At: now})
		return out, true
	}
	return dd, false
}
