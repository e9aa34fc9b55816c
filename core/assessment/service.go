package assessment

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/kasuku/mwelekeo/core"
)

var ErrNotFound = errors.New("assessment not found")

type (
	Repository interface {
		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		QueryAllAssessments(ctx context.Context) ([]Assessment, error)
		GetAssessmentByID(ctx context.Context, id string) (Assessment, error)
		UpdateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		DeleteAssessmentsByID(ctx context.Context, ids ...string) error

		CreateAttempt(ctx context.Context, att Attempt) (Attempt, error)
		QueryAttemptsByUser(ctx context.Context, userID string) ([]Attempt, error)
		QueryAttemptsByAssessment(ctx context.Context, assessmentID string) ([]Attempt, error)
		CountAttempts(ctx context.Context, userID, assessmentID string) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, na NewAssessment) (Assessment, error) {
	now := core.NowFunc().UTC()
	a := Assessment{
		ID:            uuid.New().String(),
		Collection:    na.Collection,
		Name:          na.Name,
		Description:   na.Description,
		QuestionCount: na.QuestionCount,
		IsPublished:   na.IsPublished,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateAssessment(ctx, a)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Assessment, error) {
	return svc.repo.QueryAllAssessments(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Assessment, error) {
	return svc.repo.GetAssessmentByID(ctx, id)
}

// Update edits an assessment definition; unset fields are kept as-is.
func (svc *Service) Update(ctx context.Context, id string, ua UpdateAssessment) (Assessment, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	if ua.Collection != "" {
		a.Collection = ua.Collection
	}
	if ua.Name != "" {
		a.Name = ua.Name
	}
	if ua.Description != "" {
		a.Description = ua.Description
	}
	if ua.QuestionCount != 0 {
		a.QuestionCount = ua.QuestionCount
	}
	if ua.IsPublished != nil {
		a.IsPublished = *ua.IsPublished
	}
	a.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateAssessment(ctx, a)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteAssessmentsByID(ctx, ids...)
}

// RecordAttempt stores a new attempt for userID, numbering it after the
// attempts already on record.
func (svc *Service) RecordAttempt(ctx context.Context, userID string, na NewAttempt) (Attempt, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, na.AssessmentID)
	if err != nil {
		return Attempt{}, err
	}
	n, err := svc.repo.CountAttempts(ctx, userID, a.ID)
	if err != nil {
		return Attempt{}, err
	}

	att := Attempt{
		ID:           AttemptID(a.Collection, a.ID, n+1),
		UserID:       userID,
		AssessmentID: a.ID,
		Number:       n + 1,
		Score:        na.Score,
		MaxScore:     na.MaxScore,
		TakenAt:      core.NowFunc().UTC(),
	}
	return svc.repo.CreateAttempt(ctx, att)
}

func (svc *Service) AttemptsFor(ctx context.Context, userID string) ([]Attempt, error) {
	return svc.repo.QueryAttemptsByUser(ctx, userID)
}

// ProgressFor groups a student's attempts by assessment and summarizes
// each group.
func (svc *Service) ProgressFor(ctx context.Context, userID string) ([]Progress, error) {
	attempts, err := svc.repo.QueryAttemptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defs, err := svc.repo.QueryAllAssessments(ctx)
	if err != nil {
		return nil, err
	}
	return BuildProgress(attempts, defs), nil
}

// OverviewFor rolls the student's progress up into a single dashboard card.
func (svc *Service) OverviewFor(ctx context.Context, userID string) (Overview, error) {
	progress, err := svc.ProgressFor(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	defs, err := svc.repo.QueryAllAssessments(ctx)
	if err != nil {
		return Overview{}, err
	}
	return BuildOverview(progress, defs), nil
}

// CohortAnalytics aggregates every assessment across all students.
func (svc *Service) CohortAnalytics(ctx context.Context) ([]CohortStats, error) {
	defs, err := svc.repo.QueryAllAssessments(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]CohortStats, 0, len(defs))
	for _, def := range defs {
		attempts, err := svc.repo.QueryAttemptsByAssessment(ctx, def.ID)
		if err != nil {
			return nil, err
		}

		st := CohortStats{AssessmentID: def.ID, Name: def.Name, Attempts: len(attempts)}
		students := make(map[string]struct{}, len(attempts))
		var sum float64
		for _, att := range attempts {
			students[att.UserID] = struct{}{}
			sum += att.Percent()
		}
		st.Students = len(students)
		if len(attempts) > 0 {
			st.AverageScore = sum / float64(len(attempts))
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// BuildProgress groups attempts by assessment and averages each group.
func BuildProgress(attempts []Attempt, defs []Assessment) []Progress {
	names := make(map[string]string, len(defs))
	for _, def := range defs {
		names[def.ID] = def.Name
	}

	grouped := make(map[string][]Attempt)
	order := make([]string, 0)
	for _, att := range attempts {
		if _, ok := grouped[att.AssessmentID]; !ok {
			order = append(order, att.AssessmentID)
		}
		grouped[att.AssessmentID] = append(grouped[att.AssessmentID], att)
	}

	progress := make([]Progress, 0, len(grouped))
	for _, id := range order {
		group := grouped[id]
		sort.Slice(group, func(i, j int) bool { return group[i].Number < group[j].Number })

		p := Progress{AssessmentID: id, Name: names[id], Attempts: len(group)}
		var sum float64
		for _, att := range group {
			pct := att.Percent()
			sum += pct
			if pct > p.BestScore {
				p.BestScore = pct
			}
		}
		p.AverageScore = sum / float64(len(group))
		p.FirstScore = group[0].Percent()
		p.LatestScore = group[len(group)-1].Percent()
		p.Improvement = p.LatestScore - p.FirstScore
		progress = append(progress, p)
	}
	return progress
}

// BuildOverview computes completion percentage and the overall average
// over published assessments.
func BuildOverview(progress []Progress, defs []Assessment) Overview {
	var total int
	published := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if def.IsPublished {
			published[def.ID] = struct{}{}
			total++
		}
	}

	ov := Overview{TotalAssessments: total}
	var sum float64
	for _, p := range progress {
		if _, ok := published[p.AssessmentID]; !ok {
			continue
		}
		ov.Completed++
		sum += p.AverageScore
	}
	if ov.Completed > 0 {
		ov.OverallAverage = sum / float64(ov.Completed)
	}
	if total > 0 {
		ov.CompletionPercent = float64(ov.Completed) / float64(total) * 100
	}
	return ov
}
