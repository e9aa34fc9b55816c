package inmemdb

import (
	"sync"

	"github.com/kasuku/mwelekeo/core/assessment"
	"github.com/kasuku/mwelekeo/core/user"
)

type (
	DB struct {
		user       *userTable
		assessment *assessmentTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	assessmentTable struct {
		sync.RWMutex
		table    map[string]*assessment.Assessment
		attempts map[string]*assessment.Attempt
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		assessment: &assessmentTable{
			table:    make(map[string]*assessment.Assessment),
			attempts: make(map[string]*assessment.Attempt),
		},
	}
	return db, nil
}
