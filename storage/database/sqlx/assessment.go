package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/kasuku/mwelekeo/core/assessment"
)

type assessmentRepository struct {
	db *sqlx.DB
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *sqlx.DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

func (repo assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	_, err := repo.db.NamedExecContext(
		ctx,
		`INSERT INTO assessment (id, collection, name, description, question_count, is_published, created_at, updated_at)
		 VALUES (:id, :collection, :name, :description, :question_count, :is_published, :created_at, :updated_at)`,
		a,
	)
	if err != nil {
		return assessment.Assessment{}, err
	}
	return a, nil
}

func (repo assessmentRepository) QueryAllAssessments(ctx context.Context) ([]assessment.Assessment, error) {
	var defs []assessment.Assessment
	if err := repo.db.SelectContext(ctx, &defs, `SELECT * FROM assessment ORDER BY created_at`); err != nil {
		return nil, err
	}
	return defs, nil
}

func (repo assessmentRepository) GetAssessmentByID(ctx context.Context, id string) (assessment.Assessment, error) {
	var a assessment.Assessment
	err := repo.db.GetContext(ctx, &a, `SELECT * FROM assessment WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	if err != nil {
		return assessment.Assessment{}, err
	}
	return a, nil
}

func (repo assessmentRepository) UpdateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	res, err := repo.db.NamedExecContext(
		ctx,
		`UPDATE assessment
		 SET collection = :collection, name = :name, description = :description,
		     question_count = :question_count, is_published = :is_published, updated_at = :updated_at
		 WHERE id = :id`,
		a,
	)
	if err != nil {
		return assessment.Assessment{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	return a, nil
}

func (repo assessmentRepository) DeleteAssessmentsByID(ctx context.Context, ids ...string) error {
	q, args, err := sqlx.In(`DELETE FROM assessment WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	_, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	return err
}

func (repo assessmentRepository) CreateAttempt(ctx context.Context, att assessment.Attempt) (assessment.Attempt, error) {
	_, err := repo.db.NamedExecContext(
		ctx,
		`INSERT INTO attempt (id, user_id, assessment_id, number, score, max_score, taken_at)
		 VALUES (:id, :user_id, :assessment_id, :number, :score, :max_score, :taken_at)`,
		att,
	)
	if err != nil {
		return assessment.Attempt{}, err
	}
	return att, nil
}

func (repo assessmentRepository) QueryAttemptsByUser(ctx context.Context, userID string) ([]assessment.Attempt, error) {
	var attempts []assessment.Attempt
	err := repo.db.SelectContext(
		ctx, &attempts,
		`SELECT * FROM attempt WHERE user_id = $1 ORDER BY taken_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (repo assessmentRepository) QueryAttemptsByAssessment(ctx context.Context, assessmentID string) ([]assessment.Attempt, error) {
	var attempts []assessment.Attempt
	err := repo.db.SelectContext(
		ctx, &attempts,
		`SELECT * FROM attempt WHERE assessment_id = $1 ORDER BY taken_at`,
		assessmentID,
	)
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (repo assessmentRepository) CountAttempts(ctx context.Context, userID, assessmentID string) (int, error) {
	var n int
	err := repo.db.GetContext(
		ctx, &n,
		`SELECT COUNT(*) FROM attempt WHERE user_id = $1 AND assessment_id = $2`,
		userID, assessmentID,
	)
	return n, err
}
