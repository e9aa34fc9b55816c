package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasuku/mwelekeo/core/user"
)

func Test_userApi_create(t *testing.T) {
	fix := setup(t)
	admin := createUser(t, fix.usrSvc, "admin@uni.edu", user.RoleAdmin)
	student := createUser(t, fix.usrSvc, "student@uni.edu")

	newForm := func(email string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			FirstName:       "John",
			LastName:        "Doe",
			Email:           email,
			Password:        "Xkcd9367",
			PasswordConfirm: "Xkcd9367",
			Course:          "BSIT",
			AcceptTerms:     true,
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{
			name:     "missing token",
			body:     newForm("a@uni.edu"),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "student cannot create users",
			body:     newForm("b@uni.edu"),
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "admin creates a counselor",
			body:     newForm("counselor@uni.edu", user.RoleCounselor),
			token:    getToken(t, admin),
			wantCode: http.StatusCreated,
		},
		{
			name:     "cannot grant a role above your own",
			body:     newForm("owner@uni.edu", user.RoleAdminOwner),
			token:    getToken(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"roles": "not enough rights to set these roles"}`),
		},
		{
			name:     "duplicate email",
			body:     newForm("student@uni.edu"),
			token:    getToken(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "a user with this email already exists"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users", tt.token, tt.body)
			fix.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_query(t *testing.T) {
	fix := setup(t)
	admin := createUser(t, fix.usrSvc, "admin@uni.edu", user.RoleAdmin)
	counselor := createUser(t, fix.usrSvc, "counselor@uni.edu", user.RoleCounselor)
	student := createUser(t, fix.usrSvc, "student@uni.edu")

	t.Run("students cannot list users", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users", getToken(t, student))
		fix.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("counselors can", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users", getToken(t, counselor))
		fix.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var users []user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
			t.Fatalf("unmarshalling users: %v", err)
		}
		assert.Len(t, users, 3)
	})

	t.Run("filter by role", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users?role=student:", getToken(t, admin))
		fix.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var users []user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
			t.Fatalf("unmarshalling users: %v", err)
		}
		if assert.Len(t, users, 1) {
			assert.Equal(t, student.ID, users[0].ID)
		}
	})

	t.Run("search", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users?search=counselor@", getToken(t, admin))
		fix.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var users []user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
			t.Fatalf("unmarshalling users: %v", err)
		}
		if assert.Len(t, users, 1) {
			assert.Equal(t, counselor.ID, users[0].ID)
		}
	})
}

func Test_userApi_detail(t *testing.T) {
	fix := setup(t)
	admin := createUser(t, fix.usrSvc, "admin@uni.edu", user.RoleAdmin)
	student := createUser(t, fix.usrSvc, "student@uni.edu")
	other := createUser(t, fix.usrSvc, "other@uni.edu")

	tests := []httpTest{
		{
			name:     "own profile",
			method:   http.MethodGet,
			path:     "/v1/users/" + student.ID,
			token:    getToken(t, student),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, student),
		},
		{
			name:     "someone else's profile is not found",
			method:   http.MethodGet,
			path:     "/v1/users/" + other.ID,
			token:    getToken(t, student),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "admin sees anyone",
			method:   http.MethodGet,
			path:     "/v1/users/" + other.ID,
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, other),
		},
		{
			name:     "own name change",
			method:   http.MethodPut,
			path:     "/v1/users/" + student.ID,
			body:     marchallObj(t, user.UpdateUser{FirstName: "Janet"}),
			token:    getToken(t, student),
			wantCode: http.StatusOK,
		},
		{
			name:     "non-admin cannot change roles",
			method:   http.MethodPut,
			path:     "/v1/users/" + student.ID,
			body:     marchallObj(t, user.UpdateUser{Roles: user.CounselorRoles}),
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "admin promotes a student",
			method:   http.MethodPut,
			path:     "/v1/users/" + other.ID,
			body:     marchallObj(t, user.UpdateUser{Roles: user.CounselorRoles}),
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
		},
		{
			name:     "student cannot delete",
			method:   http.MethodDelete,
			path:     "/v1/users/" + student.ID,
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "admin cannot delete themselves",
			method:   http.MethodDelete,
			path:     "/v1/users/" + admin.ID,
			token:    getToken(t, admin),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "admin deletes a user",
			method:   http.MethodDelete,
			path:     "/v1/users/" + student.ID,
			token:    getToken(t, admin),
			wantCode: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			fix.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_destroyMultiple(t *testing.T) {
	fix := setup(t)
	admin := createUser(t, fix.usrSvc, "admin@uni.edu", user.RoleAdmin)
	u1 := createUser(t, fix.usrSvc, "u1@uni.edu")
	u2 := createUser(t, fix.usrSvc, "u2@uni.edu")

	t.Run("cannot include self", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users?id="+u1.ID+"&id="+admin.ID, getToken(t, admin))
		fix.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users?id="+u1.ID+"&id="+u2.ID, getToken(t, admin))
		fix.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		_, err := fix.usrSvc.GetByID(context.Background(), u1.ID)
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func Test_userApi_queryRoles(t *testing.T) {
	fix := setup(t)
	admin := createUser(t, fix.usrSvc, "admin@uni.edu", user.RoleAdmin)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", getToken(t, admin))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "roles",
		wantCode: http.StatusOK,
		wantData: marchallObj(t, user.Roles),
	}, rec)
}
