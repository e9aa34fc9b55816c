package main

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/kasuku/mwelekeo/core"
	"github.com/kasuku/mwelekeo/core/user"
	inmemdb "github.com/kasuku/mwelekeo/storage/database/inmem"
)

func TestMain(m *testing.M) {
	core.Conf = &core.Config{TestMode: true, AppName: "Mwelekeo", WorkDir: core.Getwd()}
	os.Exit(m.Run())
}

func mockReadPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func setup(t *testing.T) *commandLine {
	t.Helper()
	memdb, _ := inmemdb.Open()
	return &commandLine{usrRepo: inmemdb.NewUserRepository(memdb)}
}

func Test_commandLine_run_help(t *testing.T) {
	cli := setup(t)
	mockReadPassword(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{"no command", []string{"admin"}},
		{"unknown command", []string{"admin", "frobnicate"}},
		{"addsuperuser without email", []string{"admin", "addsuperuser"}},
		{"addsuperuser without password", []string{"admin", "addsuperuser", "-email", "root@uni.edu"}},
		{"resetpassword without email", []string{"admin", "resetpassword"}},
		{"migrate without command", []string{"admin", "migrate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, errHelp, cli.run(tt.args))
		})
	}
}

func Test_commandLine_addSuperuser(t *testing.T) {
	cli := setup(t)
	mockReadPassword(t, "Xkcd9367")
	ctx := context.Background()

	err := cli.run([]string{"admin", "addsuperuser", "-email", "Root@UNI.edu", "-last-name", "Root"})
	assert.NoError(t, err)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, "root@uni.edu")
	if assert.NoError(t, err) {
		assert.Equal(t, "Admin", usr.FirstName)
		assert.Equal(t, "Root", usr.LastName)
		assert.Equal(t, user.AllRoles, usr.Roles)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword("Xkcd9367"))
	}

	// running again promotes instead of duplicating
	err = cli.run([]string{"admin", "addsuperuser", "-email", "root@uni.edu"})
	assert.NoError(t, err)

	users, _ := cli.usrRepo.QueryAllUsers(ctx)
	assert.Len(t, users, 1)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr := user.User{ID: "u1", FirstName: "Jane", Email: "jane.doe@uni.edu", IsActive: true}
	if err := usr.SetPassword("OldPwd123"); err != nil {
		t.Fatal(err)
	}
	if _, err := cli.usrRepo.CreateUser(ctx, usr); err != nil {
		t.Fatal(err)
	}

	mockReadPassword(t, "NewPwd123")
	err := cli.run([]string{"admin", "resetpassword", "-email", "jane.doe@uni.edu"})
	assert.NoError(t, err)

	usr, _ = cli.usrRepo.GetUserByEmail(ctx, "jane.doe@uni.edu")
	assert.NoError(t, usr.CheckPassword("NewPwd123"))
	assert.Error(t, usr.CheckPassword("OldPwd123"))

	t.Run("unknown email", func(t *testing.T) {
		err := cli.run([]string{"admin", "resetpassword", "-email", "who@uni.edu"})
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)
	cli.db = new(sqlx.DB)

	var gotCommand string
	var gotArgs []string
	orig := gooseRunFunc
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCommand = command
		gotArgs = args
		return nil
	}
	t.Cleanup(func() { gooseRunFunc = orig })

	err := cli.run([]string{"admin", "migrate", "up-to", "00002"})
	assert.NoError(t, err)
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, []string{"00002"}, gotArgs)
}
