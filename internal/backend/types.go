package backend

// SuggestedPlan is the schedule the backend proposes after analysis.
type SuggestedPlan struct {
	Days        int     `json:"days"`
	HoursPerDay float64 `json:"hours_per_day"`
}

// AnalysisSummary is the backend's answer to a file submission.
type AnalysisSummary struct {
	TaskID                 string        `json:"task_id"`
	Filename               string        `json:"filename,omitempty"`
	FileType               string        `json:"file_type,omitempty"`
	SizeBytes              int64         `json:"file_size_bytes,omitempty"`
	Pages                  int           `json:"pages"`
	DetectedLanguage       string        `json:"detected_language,omitempty"`
	DocumentType           string        `json:"document_type,omitempty"`
	DocumentSummary        string        `json:"document_summary,omitempty"`
	SuggestedPlan          SuggestedPlan `json:"suggested_plan"`
	EstimatedProcessingMin int           `json:"estimated_processing_time_min"`

	// Legacy is set when the summary came from the legacy upload endpoint.
	Legacy bool `json:"legacy,omitempty"`
}

// GenerationOptions are the user-chosen plan parameters.
type GenerationOptions struct {
	Days        int     `json:"days" validate:"required,gte=1,lte=365"`
	HoursPerDay float64 `json:"hours_per_day,omitempty" validate:"omitempty,gte=0.5,lte=24"`
	Language    string  `json:"language,omitempty" validate:"omitempty,min=2,max=8"`
}
