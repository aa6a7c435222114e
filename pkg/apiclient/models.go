package apiclient

import (
	"time"
)

// University is a tenant of the platform
type University struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Course belongs to a university and is taught by professors
type Course struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code,omitempty"`
	Description  string    `json:"description,omitempty"`
	UniversityID string    `json:"universityId"`
	ProfessorIDs []string  `json:"professorIds,omitempty"`
	Semester     string    `json:"semester,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Module is a unit of a course with its own tutor configuration
type Module struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CourseID     string    `json:"courseId"`
	SystemPrompt string    `json:"systemPrompt,omitempty"`
	AIModelID    string    `json:"aiModelId,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// File is course material attached to a module
type File struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ModuleID    string    `json:"moduleId"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploadedBy,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// AccessToken grants students access to a module's tutor
type AccessToken struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Token      string     `json:"token,omitempty"`
	ModuleID   string     `json:"moduleId"`
	IsActive   bool       `json:"isActive"`
	UsageCount int        `json:"usageCount"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// AIModel is a model selectable for modules
type AIModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"isActive"`
}

// AnalyticsOverview holds the headline counters of the analytics page
type AnalyticsOverview struct {
	TotalUniversities int     `json:"totalUniversities"`
	TotalCourses      int     `json:"totalCourses"`
	TotalModules      int     `json:"totalModules"`
	TotalProfessors   int     `json:"totalProfessors"`
	TotalStudents     int     `json:"totalStudents"`
	ActiveTokens      int     `json:"activeTokens"`
	TotalSessions     int     `json:"totalSessions"`
	AverageRating     float64 `json:"averageRating,omitempty"`
}

// UsagePoint is one day of tutor usage
type UsagePoint struct {
	Date      string `json:"date"`
	Sessions  int    `json:"sessions"`
	Messages  int    `json:"messages"`
	TokensIn  int    `json:"tokensIn,omitempty"`
	TokensOut int    `json:"tokensOut,omitempty"`
}

// ImprovePromptRequest asks the AI API to rewrite a module system prompt
type ImprovePromptRequest struct {
	Prompt     string `json:"prompt"`
	Context    string `json:"context,omitempty"`
	ModuleName string `json:"module_name,omitempty"`
}

// ImprovePromptResponse carries the rewritten prompt
type ImprovePromptResponse struct {
	ImprovedPrompt string   `json:"improved_prompt"`
	Suggestions    []string `json:"suggestions,omitempty"`
}
