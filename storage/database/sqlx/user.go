package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kasuku/mwelekeo/core/user"
)

type userRow struct {
	user.User
	DBRoles pq.StringArray `db:"roles"`
}

func (r userRow) toUser() user.User {
	usr := r.User
	usr.Roles = r.DBRoles
	return usr
}

func toUserRow(usr user.User) userRow {
	return userRow{User: usr, DBRoles: usr.Roles}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	excluded := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	var exists bool
	err := repo.db.GetContext(
		ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM "user" WHERE lower(email) = lower($1) AND NOT (id = ANY($2)))`,
		email, pq.Array(excluded),
	)
	if err != nil {
		return err
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	_, err := repo.db.NamedExecContext(
		ctx,
		`INSERT INTO "user" (id, first_name, last_name, email, course, other_course, is_enrolled, year_level, is_active, roles, password_hash, created_at, updated_at, last_login)
		 VALUES (:id, :first_name, :last_name, :email, :course, :other_course, :is_enrolled, :year_level, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		row,
	)
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM "user" ORDER BY created_at`); err != nil {
		return nil, err
	}
	return toUsers(rows), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE lower(email) = lower($1)`, email)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return row.toUser(), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	q := `SELECT * FROM "user" WHERE 1=1`
	args := make([]interface{}, 0, 6)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		q += ` AND (first_name ILIKE ` + p + ` OR last_name ILIKE ` + p + ` OR email ILIKE ` + p + `)`
	}
	if len(filter.Roles) > 0 {
		q += ` AND roles && ` + arg(pq.Array(filter.Roles))
	}
	if filter.Course != "" {
		q += ` AND course = ` + arg(filter.Course)
	}
	if filter.IsActive != nil {
		q += ` AND is_active = ` + arg(*filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		q += ` AND created_at >= ` + arg(filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		q += ` AND created_at <= ` + arg(filter.CreatedTo)
	}
	q += ` ORDER BY created_at`

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return toUsers(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive, isEnrolled *bool) (user.User, error) {
	origUsr, err := repo.GetUserByID(ctx, usr.ID)
	if err != nil {
		return user.User{}, err
	}

	// only save set fields
	if usr.Roles != nil {
		origUsr.Roles = usr.Roles
	}
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	if isActive != nil {
		origUsr.IsActive = *isActive
	}
	if usr.FirstName != "" {
		origUsr.FirstName = usr.FirstName
	}
	if usr.LastName != "" {
		origUsr.LastName = usr.LastName
	}
	if usr.Email != "" {
		origUsr.Email = usr.Email
	}
	if usr.Course != "" {
		origUsr.Course = usr.Course
		origUsr.OtherCourse = usr.OtherCourse
	}
	if usr.YearLevel != 0 {
		origUsr.YearLevel = usr.YearLevel
	}
	if isEnrolled != nil {
		origUsr.IsEnrolled = *isEnrolled
	}
	origUsr.UpdatedAt = usr.UpdatedAt

	row := toUserRow(origUsr)
	_, err = repo.db.NamedExecContext(
		ctx,
		`UPDATE "user"
		 SET first_name = :first_name, last_name = :last_name, email = :email, course = :course,
		     other_course = :other_course, is_enrolled = :is_enrolled, year_level = :year_level,
		     is_active = :is_active, roles = :roles, password_hash = :password_hash, updated_at = :updated_at
		 WHERE id = :id`,
		row,
	)
	if err != nil {
		return user.User{}, err
	}
	return origUsr, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := repo.GetUserByEmail(ctx, usr.Email); err == user.ErrNotFound {
		return repo.CreateUser(ctx, usr)
	} else if err != nil {
		return user.User{}, err
	}
	return repo.UpdateUser(ctx, usr, &usr.IsActive, &usr.IsEnrolled)
}

func (repo userRepository) SetUserLastLogin(ctx context.Context, usr user.User, at time.Time) (user.User, error) {
	_, err := repo.db.ExecContext(ctx, `UPDATE "user" SET last_login = $1 WHERE id = $2`, at, usr.ID)
	if err != nil {
		return user.User{}, err
	}
	usr.LastLogin = at
	return usr, nil
}

func (repo userRepository) SetUserPassword(ctx context.Context, usr user.User) error {
	res, err := repo.db.ExecContext(
		ctx,
		`UPDATE "user" SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		usr.PasswordHash, usr.UpdatedAt, usr.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users
}
