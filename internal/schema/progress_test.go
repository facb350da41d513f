package schema

import "testing"

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := FromSchemas(&RoleSchema{
		Role:     "it",
		RoleName: "IT-Verantwortliche",
		Themes: []Theme{
			{ID: "systemlandschaft", Name: "Systemlandschaft", Fields: []Field{
				{ID: "systeme_im_einsatz", Question: "Welche Systeme sind im Einsatz?", Required: true},
				{ID: "sap_module", Question: "Welche SAP-Module nutzen Sie?", Required: true, Conditional: "systeme_im_einsatz contains 'sap'"},
				{ID: "datenformate", Question: "Welche Datenformate werden ausgetauscht?", Required: true},
			}},
			{ID: "betrieb", Name: "Betrieb", Fields: []Field{
				{ID: "monitoring", Question: "Wie wird der Betrieb überwacht?", Required: true},
				{ID: "notizen", Question: "Gibt es weitere Anmerkungen?"},
			}},
		},
		Completion: CompletionCriteria{MinimumRequiredFields: 3, RequiredThemes: []string{"betrieb"}},
	})
	if err != nil {
		t.Fatalf("FromSchemas: %v", err)
	}
	return r
}

func TestProgressEmpty(t *testing.T) {
	r := testRegistry(t)
	rep := r.Progress("it", map[string]string{})
	if rep.Total != 5 {
		t.Fatalf("total = %d, want 5", rep.Total)
	}
	// sap_module's condition is inactive, so it does not count as required.
	if rep.Required != 3 {
		t.Fatalf("required = %d, want 3", rep.Required)
	}
	if rep.Percent != 0 {
		t.Fatalf("percent = %v, want 0", rep.Percent)
	}
	if len(rep.MissingRequired) != 3 || rep.MissingRequired[0] != "systeme_im_einsatz" {
		t.Fatalf("missing = %v", rep.MissingRequired)
	}
	if rep.Complete {
		t.Fatal("empty questionnaire must not be complete")
	}
}

func TestProgressConditionalActivation(t *testing.T) {
	r := testRegistry(t)
	filled := map[string]string{"systeme_im_einsatz": "SAP ERP und Outlook"}
	rep := r.Progress("it", filled)
	if rep.Required != 4 {
		t.Fatalf("required = %d, want 4 after activating sap_module", rep.Required)
	}
	if rep.Percent != 25.0 {
		t.Fatalf("percent = %v, want 25.0", rep.Percent)
	}

	// An answer without the trigger keeps the conditional field inactive.
	rep = r.Progress("it", map[string]string{"systeme_im_einsatz": "Nur Outlook"})
	if rep.Required != 3 {
		t.Fatalf("required = %d, want 3", rep.Required)
	}
	for _, id := range rep.MissingRequired {
		if id == "sap_module" {
			t.Fatal("inactive conditional field must not be reported missing")
		}
	}
}

func TestProgressRounding(t *testing.T) {
	r := testRegistry(t)
	rep := r.Progress("it", map[string]string{"systeme_im_einsatz": "Outlook"})
	// 1 of 3 required: one decimal place.
	if rep.Percent != 33.3 {
		t.Fatalf("percent = %v, want 33.3", rep.Percent)
	}
}

func TestProgressComplete(t *testing.T) {
	r := testRegistry(t)
	filled := map[string]string{
		"systeme_im_einsatz": "Outlook",
		"datenformate":       "CSV",
		"monitoring":         "Grafana Dashboards",
	}
	rep := r.Progress("it", filled)
	if !rep.Complete {
		t.Fatalf("expected complete, got %+v", rep)
	}
	if rep.Percent != 100 {
		t.Fatalf("percent = %v, want 100", rep.Percent)
	}

	// Whitespace-only answers do not count as filled.
	filled["monitoring"] = "   "
	if rep := r.Progress("it", filled); rep.Complete {
		t.Fatal("blank answer must not complete the questionnaire")
	}
}

func TestProgressUnknownRole(t *testing.T) {
	r := testRegistry(t)
	rep := r.Progress("vertrieb", map[string]string{"x": "y"})
	if rep.Total != 0 || rep.Complete || rep.MissingRequired == nil {
		t.Fatalf("unknown role should yield an empty report, got %+v", rep)
	}
}

func TestNextMissingFieldOrder(t *testing.T) {
	r := testRegistry(t)

	f := r.NextMissingField("it", map[string]string{})
	if f == nil || f.ID != "systeme_im_einsatz" {
		t.Fatalf("first missing = %+v, want systeme_im_einsatz", f)
	}

	filled := map[string]string{"systeme_im_einsatz": "SAP ERP"}
	f = r.NextMissingField("it", filled)
	if f == nil || f.ID != "sap_module" {
		t.Fatalf("activated conditional should come next, got %+v", f)
	}

	filled = map[string]string{
		"systeme_im_einsatz": "Outlook",
		"datenformate":       "CSV",
		"monitoring":         "Grafana",
	}
	f = r.NextMissingField("it", filled)
	if f == nil || f.ID != "notizen" {
		t.Fatalf("optional field should follow required ones, got %+v", f)
	}

	filled["notizen"] = "keine"
	if f = r.NextMissingField("it", filled); f != nil {
		t.Fatalf("nothing missing, got %+v", f)
	}
}

func TestLoadDefaultSchemas(t *testing.T) {
	r, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	for _, role := range []string{"it", "fach", "management"} {
		if r.Schema(role) == nil {
			t.Fatalf("embedded schema for role %q missing", role)
		}
	}
	if fields := r.AllFields("it"); len(fields) == 0 {
		t.Fatal("it schema has no fields")
	}
}

func TestRequiredThemeWithoutActiveFieldsStaysCompletable(t *testing.T) {
	// zusatz has one required field guarded by a condition that never fires,
	// so the theme can never accrue a filled required field. Naming it in
	// required_themes must not make completion unreachable.
	r, err := FromSchemas(&RoleSchema{
		Role: "it",
		Themes: []Theme{
			{ID: "basis", Name: "Basis", Fields: []Field{
				{ID: "systeme", Question: "Welche Systeme?", Required: true},
			}},
			{ID: "zusatz", Name: "Zusatz", Fields: []Field{
				{ID: "details", Question: "Details?", Required: true, Conditional: "systeme contains 'mainframe'"},
			}},
		},
		Completion: CompletionCriteria{MinimumRequiredFields: 1, RequiredThemes: []string{"basis", "zusatz"}},
	})
	if err != nil {
		t.Fatalf("FromSchemas: %v", err)
	}

	rep := r.Progress("it", map[string]string{"systeme": "SAP ERP"})
	if !rep.Complete {
		t.Fatalf("theme without active required fields must count as satisfied, got %+v", rep)
	}
	if f := r.NextMissingField("it", map[string]string{"systeme": "SAP ERP"}); f != nil {
		t.Fatalf("nothing should be missing, got %+v", f)
	}

	// Once the guard fires the theme participates again.
	rep = r.Progress("it", map[string]string{"systeme": "Mainframe"})
	if rep.Complete {
		t.Fatal("activated required theme must block completion until filled")
	}
}

func TestUnknownConditionFieldDisabled(t *testing.T) {
	r, err := FromSchemas(&RoleSchema{
		Role: "fach",
		Themes: []Theme{
			{ID: "t", Name: "T", Fields: []Field{
				{ID: "a", Question: "A?", Required: true},
				{ID: "b", Question: "B?", Required: true, Conditional: "nicht_vorhanden contains 'x'"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("FromSchemas: %v", err)
	}
	rep := r.Progress("fach", map[string]string{"a": "x", "nicht_vorhanden": "x"})
	if rep.Required != 1 {
		t.Fatalf("field with unknown condition reference must stay inactive, required = %d", rep.Required)
	}
}
