package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/kasuku/mwelekeo/core"
	"github.com/kasuku/mwelekeo/core/user"
)

// addSuperuser updates or creates an active admin account.
func (cli *commandLine) addSuperuser(email, firstName, lastName, pwd string) error {
	var usr user.User
	var err error
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	if usr, err = cli.usrRepo.GetUserByEmail(ctx, email); err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := core.NowFunc().UTC()
		usr = user.User{
			ID:        uuid.New().String(),
			FirstName: firstName,
			LastName:  lastName,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	usr.Roles = user.AllRoles
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
