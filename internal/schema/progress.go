package schema

import "math"

// Report is the completion state of one role questionnaire. It is a pure
// function of (role schema, filled fields); nothing here is cached because
// earlier answers can retroactively activate or deactivate conditional
// fields.
type Report struct {
	Total           int      `json:"total_fields"`
	Required        int      `json:"required_fields"`
	Filled          int      `json:"filled_fields"`
	FilledRequired  int      `json:"filled_required"`
	Percent         float64  `json:"progress_percent"`
	MissingRequired []string `json:"missing_required"`
	Themes          map[string]ThemeReport `json:"themes_progress,omitempty"`
	Complete        bool     `json:"is_complete"`
}

// ThemeReport is the per-theme slice of a Report.
type ThemeReport struct {
	Name           string  `json:"name"`
	Total          int     `json:"total"`
	Filled         int     `json:"filled"`
	Required       int     `json:"required"`
	RequiredFilled int     `json:"required_filled"`
	Percent        float64 `json:"progress_percent"`
}

// Progress computes the completion report for role given the currently
// filled fields. filled is never mutated.
func (r *Registry) Progress(role string, filled map[string]string) Report {
	s := r.schemas[role]
	if s == nil {
		return Report{MissingRequired: []string{}, Themes: map[string]ThemeReport{}}
	}

	rep := Report{
		MissingRequired: []string{},
		Themes:          make(map[string]ThemeReport, len(s.Themes)),
	}
	for ti := range s.Themes {
		t := &s.Themes[ti]
		tr := ThemeReport{Name: t.Name, Total: len(t.Fields)}
		for fi := range t.Fields {
			f := &t.Fields[fi]
			rep.Total++
			isFilled := filledValue(filled, f.ID)
			if isFilled {
				rep.Filled++
				tr.Filled++
			}
			if !isRequired(f, filled) {
				continue
			}
			rep.Required++
			tr.Required++
			if isFilled {
				rep.FilledRequired++
				tr.RequiredFilled++
			} else {
				rep.MissingRequired = append(rep.MissingRequired, f.ID)
			}
		}
		tr.Percent = percent(tr.RequiredFilled, tr.Required)
		rep.Themes[t.ID] = tr
	}

	rep.Percent = percent(rep.FilledRequired, rep.Required)
	rep.Complete = len(rep.MissingRequired) == 0 &&
		rep.FilledRequired >= s.Completion.MinimumRequiredFields &&
		themesSatisfied(s.Completion.RequiredThemes, rep.Themes)
	return rep
}

// themesSatisfied checks that every required theme has at least one filled
// required field. A theme with no currently active required fields (all of
// them conditional and deactivated, or the theme id unknown) cannot ever be
// filled and counts as satisfied, so completion stays reachable.
func themesSatisfied(requiredThemes []string, themes map[string]ThemeReport) bool {
	for _, id := range requiredThemes {
		t := themes[id]
		if t.Required == 0 {
			continue
		}
		if t.RequiredFilled == 0 {
			return false
		}
	}
	return true
}

// percent rounds to one decimal; an empty required set counts as done.
func percent(filled, required int) float64 {
	if required == 0 {
		return 100
	}
	return math.Round(float64(filled)/float64(required)*1000) / 10
}
