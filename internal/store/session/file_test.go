package session

import (
	"errors"
	"testing"

	"elicit/internal/interview"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	s := interview.NewSession("abc-123")
	s.Phase = interview.PhaseRoleSpecific
	s.Role = "it"
	s.Answers["role_function"] = "Administrator"
	s.SchemaFields["systeme_im_einsatz"] = "SAP"
	s.IntakeQuestions = []interview.Question{
		{ID: "role_function", Text: "Welche Rolle haben Sie?", Type: interview.QuestionFreeText, Required: true},
	}

	if err := store.Save(s.ID, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("abc-123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Role != "it" || loaded.Phase != interview.PhaseRoleSpecific {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.Answers["role_function"] != "Administrator" {
		t.Fatalf("answers lost: %v", loaded.Answers)
	}
	if loaded.SchemaFields["systeme_im_einsatz"] != "SAP" {
		t.Fatalf("schema fields lost: %v", loaded.SchemaFields)
	}
	if len(loaded.IntakeQuestions) != 1 || loaded.IntakeQuestions[0].ID != "role_function" {
		t.Fatalf("questions lost: %v", loaded.IntakeQuestions)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Load("nope"); !errors.Is(err, interview.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestFileStoreDeleteAndList(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	a := interview.NewSession("a")
	b := interview.NewSession("b")
	b.Role = "management"
	b.CompletedInterviews = []interview.ArchivedInterview{{Role: "fach"}}
	if err := store.Save(a.ID, a); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := store.Save(b.ID, b); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(infos))
	}
	var found bool
	for _, info := range infos {
		if info.SessionID == "b" {
			found = true
			if len(info.CompletedRoles) != 1 || info.CompletedRoles[0] != "fach" {
				t.Fatalf("completed roles = %v", info.CompletedRoles)
			}
		}
	}
	if !found {
		t.Fatal("session b missing from listing")
	}

	if err := store.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load("a"); !errors.Is(err, interview.ErrSessionNotFound) {
		t.Fatalf("deleted session still loadable: %v", err)
	}
}

func TestFileStoreSanitizesIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s := interview.NewSession("../../etc/passwd")
	if err := store.Save(s.ID, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Load("../../etc/passwd"); err != nil {
		t.Fatalf("Load with hostile id: %v", err)
	}
}
