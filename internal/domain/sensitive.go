package domain

import "time"

// ForwardInfo records that a sensitive idea was handed to a department.
type ForwardInfo struct {
	DepartmentID string
	ForwardedBy  string
	Note         string
	ForwardedAt  time.Time
}

// DepartmentResponse is the department's answer to a forwarded idea.
type DepartmentResponse struct {
	DepartmentID string
	RespondedBy  string
	Text         string
	RespondedAt  time.Time
}

// PublishedInfo is frozen once IsPublished is set.
type PublishedInfo struct {
	IsPublished bool
	PublishedBy string
	Text        string
	PublishedAt time.Time
}
