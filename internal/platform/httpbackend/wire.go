package httpbackend

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/phrazzld/scaffold-tracker/internal/backend"
)

// Defaults used when the legacy upload endpoint omits plan hints.
const (
	legacyDefaultDays          = 10
	legacyDefaultHoursPerDay   = 3.0
	legacyDefaultProcessingMin = 15
	legacyDefaultPages         = 100
	legacyDefaultLanguage      = "en"
)

type generateRequest struct {
	TaskID      string  `json:"task_id"`
	Days        int     `json:"days"`
	HoursPerDay float64 `json:"hours_per_day,omitempty"`
	Language    string  `json:"language,omitempty"`
}

type notifyRequest struct {
	TaskID string `json:"task_id"`
	Email  string `json:"email"`
}

// wirePlan accepts both plan vocabularies seen on the init route.
type wirePlan struct {
	Days             *json.Number `json:"days"`
	RecommendedDays  *json.Number `json:"recommended_days"`
	HoursPerDay      *json.Number `json:"hours_per_day"`
	RecommendedHours *json.Number `json:"recommended_hours_per_day"`
}

func (p wirePlan) plan() backend.SuggestedPlan {
	var out backend.SuggestedPlan
	if n, ok := firstInt(p.Days, p.RecommendedDays); ok {
		out.Days = n
	}
	if f, ok := firstFloat(p.HoursPerDay, p.RecommendedHours); ok {
		out.HoursPerDay = f
	}
	return out
}

type initResponse struct {
	TaskID                 string       `json:"task_id"`
	Filename               string       `json:"filename"`
	FileType               string       `json:"file_type"`
	FileSizeBytes          *json.Number `json:"file_size_bytes"`
	Pages                  *json.Number `json:"pages"`
	PagesOrElements        *json.Number `json:"pages_or_elements"`
	DetectedLanguage       string       `json:"detected_language"`
	DocumentType           string       `json:"document_type"`
	DocumentSummary        string       `json:"document_summary"`
	SuggestedPlan          wirePlan     `json:"suggested_plan"`
	EstimatedProcessingMin *json.Number `json:"estimated_processing_time_min"`
}

func (r initResponse) summary() *backend.AnalysisSummary {
	out := &backend.AnalysisSummary{
		TaskID:           r.TaskID,
		Filename:         r.Filename,
		FileType:         r.FileType,
		DetectedLanguage: r.DetectedLanguage,
		DocumentType:     r.DocumentType,
		DocumentSummary:  r.DocumentSummary,
		SuggestedPlan:    r.SuggestedPlan.plan(),
	}
	if n, ok := firstInt(r.Pages, r.PagesOrElements); ok {
		out.Pages = n
	}
	if n, ok := firstInt(r.FileSizeBytes); ok {
		out.SizeBytes = int64(n)
	}
	if n, ok := firstInt(r.EstimatedProcessingMin); ok {
		out.EstimatedProcessingMin = n
	}
	return out
}

type legacyUploadResponse struct {
	FileID           string       `json:"file_id"`
	Filename         string       `json:"filename"`
	Pages            *json.Number `json:"pages"`
	DocumentLanguage string       `json:"document_language"`
	RecommendedDays  *json.Number `json:"recommended_days"`
}

func (r legacyUploadResponse) summary(filename string, size int64) *backend.AnalysisSummary {
	out := &backend.AnalysisSummary{
		TaskID:                 r.FileID,
		Filename:               r.Filename,
		SizeBytes:              size,
		Pages:                  legacyDefaultPages,
		DetectedLanguage:       legacyDefaultLanguage,
		SuggestedPlan:          backend.SuggestedPlan{Days: legacyDefaultDays, HoursPerDay: legacyDefaultHoursPerDay},
		EstimatedProcessingMin: legacyDefaultProcessingMin,
		Legacy:                 true,
	}
	if out.Filename == "" {
		out.Filename = filename
	}
	if n, ok := firstInt(r.Pages); ok {
		out.Pages = n
	}
	if lang := strings.TrimSpace(r.DocumentLanguage); lang != "" {
		out.DetectedLanguage = strings.ToLower(lang)
	}
	if n, ok := firstInt(r.RecommendedDays); ok && n > 0 {
		out.SuggestedPlan.Days = n
	}
	return out
}

// firstInt returns the first value that is a count: non-negative and within
// the int32 range. Anything else is treated as absent.
func firstInt(values ...*json.Number) (int, bool) {
	for _, v := range values {
		f, ok := firstFloat(v)
		if !ok || f < 0 || f > math.MaxInt32 {
			continue
		}
		return int(f), true
	}
	return 0, false
}

func firstFloat(values ...*json.Number) (float64, bool) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
