package history

import (
	"fmt"
	"sort"
	"strings"
)

var recognizedKeys = map[string]struct{}{
	KeyOldStatus:    {},
	KeyNewStatus:    {},
	KeyDifficulty:   {},
	KeyDepartmentID: {},
	KeyReviewNotes:  {},
	KeyAssignedTo:   {},
	KeyPriority:     {},
	KeyNote:         {},
	KeyEscalated:    {},
}

// Describe renders an entry as a single human readable line without any
// knowledge of the item kind that produced it. Payload keys outside the
// recognized set are listed verbatim.
func Describe(e Entry) string {
	builder := strings.Builder{}
	actor := strings.TrimSpace(e.Actor)
	if actor == "" {
		actor = "system"
	}
	builder.WriteString(actor)
	builder.WriteString(" ")
	builder.WriteString(strings.ReplaceAll(e.Action, "_", " "))

	parts := make([]string, 0, 6)
	oldStatus := detailString(e.Details, KeyOldStatus)
	newStatus := detailString(e.Details, KeyNewStatus)
	switch {
	case oldStatus != "" && newStatus != "" && oldStatus != newStatus:
		parts = append(parts, fmt.Sprintf("status %s → %s", oldStatus, newStatus))
	case newStatus != "" && oldStatus == "":
		parts = append(parts, fmt.Sprintf("status %s", newStatus))
	}
	if v := detailString(e.Details, KeyAssignedTo); v != "" {
		parts = append(parts, fmt.Sprintf("assigned to %s", v))
	}
	if v := detailString(e.Details, KeyDepartmentID); v != "" {
		parts = append(parts, fmt.Sprintf("department %s", v))
	}
	if v := detailString(e.Details, KeyPriority); v != "" {
		parts = append(parts, fmt.Sprintf("priority %s", v))
	}
	if v := detailString(e.Details, KeyDifficulty); v != "" {
		parts = append(parts, fmt.Sprintf("difficulty %s", v))
	}
	if v, ok := e.Details[KeyEscalated].(bool); ok && v {
		parts = append(parts, "escalated")
	}
	if v := detailString(e.Details, KeyReviewNotes); v != "" {
		parts = append(parts, fmt.Sprintf("notes %q", v))
	}
	if v := detailString(e.Details, KeyNote); v != "" {
		parts = append(parts, fmt.Sprintf("%q", v))
	}

	extra := make([]string, 0)
	for k, v := range e.Details {
		if _, ok := recognizedKeys[k]; ok {
			continue
		}
		extra = append(extra, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(extra)
	parts = append(parts, extra...)

	if len(parts) > 0 {
		builder.WriteString(": ")
		builder.WriteString(strings.Join(parts, ", "))
	}
	return builder.String()
}

func detailString(details map[string]any, key string) string {
	v, ok := details[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case *string:
		if val == nil {
			return ""
		}
		return strings.TrimSpace(*val)
	case fmt.Stringer:
		return val.String()
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
