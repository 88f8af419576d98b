package history

import "testing"

func TestDescribe_StatusChange(t *testing.T) {
	entry := Entry{
		Actor:  "sup-1",
		Action: "assign",
		Details: map[string]any{
			KeyOldStatus:  "pending",
			KeyNewStatus:  "assigned",
			KeyAssignedTo: "tech-9",
		},
	}

	got := Describe(entry)
	expected := "sup-1 assign: status pending → assigned, assigned to tech-9"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestDescribe_SelfLoopOmitsStatus(t *testing.T) {
	entry := Entry{
		Actor:  "coord",
		Action: "set_difficulty",
		Details: map[string]any{
			KeyOldStatus:  "under_review",
			KeyNewStatus:  "under_review",
			KeyDifficulty: "B",
		},
	}

	got := Describe(entry)
	expected := "coord set difficulty: difficulty B"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestDescribe_ForwardWithNotes(t *testing.T) {
	entry := Entry{
		Actor:  "coord",
		Action: "forward",
		Details: map[string]any{
			KeyOldStatus:    "new",
			KeyNewStatus:    "forwarded",
			KeyDepartmentID: "HR",
			KeyReviewNotes:  "please check",
		},
	}

	got := Describe(entry)
	expected := `coord forward: status new → forwarded, department HR, notes "please check"`
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestDescribe_UnrecognizedPayloadFallsBack(t *testing.T) {
	entry := Entry{
		Actor:   "legacy",
		Action:  "import",
		Details: map[string]any{"source": "csv", "batch": 4},
	}

	got := Describe(entry)
	expected := "legacy import: batch=4, source=csv"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestDescribe_NoDetailsNoActor(t *testing.T) {
	got := Describe(Entry{Action: "escalate"})
	if got != "system escalate" {
		t.Fatalf("unexpected description: %q", got)
	}
}
