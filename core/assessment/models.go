package assessment

import (
	"fmt"
	"time"

	"github.com/kasuku/mwelekeo/core"
)

// Assessment is a career-assessment definition students take attempts of.
type Assessment struct {
	ID            string    `json:"id" db:"id"`
	Collection    string    `json:"collection" db:"collection"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	QuestionCount int       `json:"question_count" db:"question_count"`
	IsPublished   bool      `json:"is_published" db:"is_published"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// Attempt is one student run of an assessment.
type Attempt struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	AssessmentID string    `json:"assessment_id" db:"assessment_id"`
	Number       int       `json:"number" db:"number"`
	Score        float64   `json:"score" db:"score"`
	MaxScore     float64   `json:"max_score" db:"max_score"`
	TakenAt      time.Time `json:"taken_at" db:"taken_at"` // UTC
}

// AttemptID builds the record ID: <collection>_<assessmentID>_<attemptNo>.
func AttemptID(collection, assessmentID string, number int) string {
	return fmt.Sprintf("%s_%s_%d", collection, assessmentID, number)
}

// Percent is the attempt score as a percentage of the maximum.
func (a Attempt) Percent() float64 {
	if a.MaxScore == 0 {
		return 0
	}
	return a.Score / a.MaxScore * 100
}

// NewAttempt contains information needed to record an Attempt.
type NewAttempt struct {
	AssessmentID string  `json:"assessment_id" validate:"required"`
	Score        float64 `json:"score" validate:"min=0"`
	MaxScore     float64 `json:"max_score" validate:"required,gtfield=Score|eqfield=Score"`
}

func (na *NewAttempt) Validate() error {
	na.AssessmentID = core.CleanString(na.AssessmentID)
	return core.Validate.Struct(na)
}

// NewAssessment contains information needed to define an Assessment.
type NewAssessment struct {
	Collection    string `json:"collection" validate:"required,alphanum_"`
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description"`
	QuestionCount int    `json:"question_count" validate:"omitempty,min=1"`
	IsPublished   bool   `json:"is_published"`
}

func (na *NewAssessment) Validate() error {
	na.Collection = core.CleanString(na.Collection, true /* lower */)
	na.Name = core.CleanString(na.Name)
	return core.Validate.Struct(na)
}

// UpdateAssessment defines what information may be provided to modify an
// existing Assessment. Unset fields keep their current value.
type UpdateAssessment struct {
	Collection    string `json:"collection" validate:"omitempty,alphanum_"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	QuestionCount int    `json:"question_count" validate:"omitempty,min=1"`
	IsPublished   *bool  `json:"is_published"`
}

func (ua *UpdateAssessment) Validate() error {
	ua.Collection = core.CleanString(ua.Collection, true /* lower */)
	ua.Name = core.CleanString(ua.Name)
	return core.Validate.Struct(ua)
}

// Progress summarizes one student's attempts at one assessment.
type Progress struct {
	AssessmentID string  `json:"assessment_id"`
	Name         string  `json:"name"`
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"average_score"`
	BestScore    float64 `json:"best_score"`
	FirstScore   float64 `json:"first_score"`
	LatestScore  float64 `json:"latest_score"`
	// Improvement is latest minus first attempt, in percent points.
	Improvement float64 `json:"improvement"`
}

// Overview rolls Progress up across all published assessments.
type Overview struct {
	TotalAssessments  int     `json:"total_assessments"`
	Completed         int     `json:"completed"`
	CompletionPercent float64 `json:"completion_percent"`
	OverallAverage    float64 `json:"overall_average"`
}

// CohortStats aggregates one assessment across the whole student body.
type CohortStats struct {
	AssessmentID string  `json:"assessment_id"`
	Name         string  `json:"name"`
	Students     int     `json:"students"`
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"average_score"`
}
