package inmemdb

import (
	"context"
	"sort"

	"github.com/kasuku/mwelekeo/core/assessment"
)

type assessmentRepository struct {
	db *assessmentTable
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *DB) *assessmentRepository {
	return &assessmentRepository{db: db.assessment}
}

func (repo *assessmentRepository) CreateAssessment(_ context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assessmentRepository) QueryAllAssessments(_ context.Context) ([]assessment.Assessment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	defs := make([]assessment.Assessment, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		defs = append(defs, *a)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].CreatedAt.Before(defs[j].CreatedAt) })
	return defs, nil
}

func (repo *assessmentRepository) GetAssessmentByID(_ context.Context, id string) (assessment.Assessment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return assessment.Assessment{}, assessment.ErrNotFound
}

func (repo *assessmentRepository) UpdateAssessment(_ context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[a.ID]; !ok {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assessmentRepository) DeleteAssessmentsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *assessmentRepository) CreateAttempt(_ context.Context, att assessment.Attempt) (assessment.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.attempts[att.ID] = &att
	return att, nil
}

func (repo *assessmentRepository) QueryAttemptsByUser(_ context.Context, userID string) ([]assessment.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	attempts := make([]assessment.Attempt, 0)
	for _, att := range repo.db.attempts {
		if att.UserID == userID {
			attempts = append(attempts, *att)
		}
	}
	sortAttempts(attempts)
	return attempts, nil
}

func (repo *assessmentRepository) QueryAttemptsByAssessment(_ context.Context, assessmentID string) ([]assessment.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	attempts := make([]assessment.Attempt, 0)
	for _, att := range repo.db.attempts {
		if att.AssessmentID == assessmentID {
			attempts = append(attempts, *att)
		}
	}
	sortAttempts(attempts)
	return attempts, nil
}

func (repo *assessmentRepository) CountAttempts(_ context.Context, userID, assessmentID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, att := range repo.db.attempts {
		if att.UserID == userID && att.AssessmentID == assessmentID {
			n++
		}
	}
	return n, nil
}

func sortAttempts(attempts []assessment.Attempt) {
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].TakenAt.Before(attempts[j].TakenAt) })
}
