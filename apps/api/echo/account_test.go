package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/kasuku/mwelekeo/apps/api/echo"
	"github.com/kasuku/mwelekeo/core/otp"
	"github.com/kasuku/mwelekeo/core/signup"
	"github.com/kasuku/mwelekeo/core/user"
)

func Test_accountApi_signupFlow(t *testing.T) {
	fix := setup(t)

	form := user.NewUser{
		FirstName:       "Jane",
		LastName:        "Doe",
		Email:           "jane.doe@uni.edu",
		Password:        "Xkcd9367",
		PasswordConfirm: "Xkcd9367",
		Course:          "BSIT",
		YearLevel:       2,
		AcceptTerms:     true,
	}

	// start: a code is sent and no account exists yet
	req, rec := newRequest(http.MethodPost, "/v1/auth/signup/start", marchallObj(t, form))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "start",
		wantCode: http.StatusOK,
		wantData: marchallObj(t, FlowResponse{
			State:   "code_pending",
			Success: "A verification code has been sent to your email address.",
		}),
	}, rec)

	_, err := fix.usrSvc.GetByEmail(req.Context(), form.Email)
	assert.Equal(t, user.ErrNotFound, err)

	code := pendingCode(t, fix.signupStore, form.Email, otp.PurposeSignup)

	// resend immediately: cooldown
	req, rec = newRequest(http.MethodPost, "/v1/auth/signup/resend", marchallObj(t, EmailRequest{Email: form.Email}))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "resend cooldown",
		wantCode: http.StatusTooManyRequests,
		wantData: marchallObj(t, httpErr{Error: otp.ErrResendCooldown.Error()}),
	}, rec)

	// wrong code
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	req, rec = newRequest(http.MethodPost, "/v1/auth/signup/confirm",
		marchallObj(t, VerifyCodeRequest{Email: form.Email, Code: wrong}))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "wrong code",
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: otp.ErrInvalid.Error()}),
	}, rec)

	// right code: account created, token issued
	req, rec = newRequest(http.MethodPost, "/v1/auth/signup/confirm",
		marchallObj(t, VerifyCodeRequest{Email: form.Email, Code: code}))
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("confirm: code = %d; want %d; body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var resp SignupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling SignupResponse: %v", err)
	}
	assert.Equal(t, "done", resp.State)
	assert.Equal(t, form.Email, resp.User.Email)
	assert.Equal(t, []string{user.RoleStudent}, resp.User.Roles)
	assert.NotEmpty(t, resp.Token)

	// the issued token is usable right away
	req, rec = newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", resp.Token)
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// and the password works
	req, rec = newRequest(http.MethodPost, "/v1/auth/login",
		marchallObj(t, LoginRequest{Email: form.Email, Password: form.Password}))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_accountApi_signupStart_invalidForm(t *testing.T) {
	fix := setup(t)

	form := user.NewUser{Email: "not-an-email", Password: "abc"}
	req, rec := newRequest(http.MethodPost, "/v1/auth/signup/start", marchallObj(t, form))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var fldErrs map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
		t.Fatalf("unmarshalling field errors: %v", err)
	}
	assert.Contains(t, fldErrs, "email")
	assert.Contains(t, fldErrs, "first_name")
}

func Test_accountApi_signupCancel(t *testing.T) {
	fix := setup(t)

	form := user.NewUser{
		FirstName:       "Jane",
		LastName:        "Doe",
		Email:           "jane.doe@uni.edu",
		Password:        "Xkcd9367",
		PasswordConfirm: "Xkcd9367",
		Course:          "BSIT",
		AcceptTerms:     true,
	}
	req, rec := newRequest(http.MethodPost, "/v1/auth/signup/start", marchallObj(t, form))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req, rec = newRequest(http.MethodPost, "/v1/auth/signup/cancel", marchallObj(t, EmailRequest{Email: form.Email}))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// the discarded signup cannot be confirmed
	req, rec = newRequest(http.MethodPost, "/v1/auth/signup/confirm",
		marchallObj(t, VerifyCodeRequest{Email: form.Email, Code: "123456"}))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "confirm after cancel",
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: signup.ErrNoPendingSignup.Error()}),
	}, rec)
}

func Test_accountApi_login(t *testing.T) {
	fix := setup(t)
	createUser(t, fix.usrSvc, "jane.doe@uni.edu")

	inactive := createUser(t, fix.usrSvc, "gone@uni.edu")
	isActive := false
	if _, err := fix.usrSvc.Update(context.Background(), inactive.ID, user.UpdateUser{IsActive: &isActive}); err != nil {
		t.Fatalf("deactivating user: %v", err)
	}

	tests := []httpTest{
		{
			name:     "ok",
			body:     marchallObj(t, LoginRequest{Email: "jane.doe@uni.edu", Password: "Xkcd9367"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "email is case-insensitive",
			body:     marchallObj(t, LoginRequest{Email: "Jane.Doe@UNI.edu", Password: "Xkcd9367"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Email: "jane.doe@uni.edu", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "unknown email",
			body:     marchallObj(t, LoginRequest{Email: "who@uni.edu", Password: "Xkcd9367"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, LoginRequest{Email: "gone@uni.edu", Password: "Xkcd9367"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "missing fields",
			body:     marchallObj(t, LoginRequest{}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/login", tt.body)
			fix.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_accountApi_tokenRefresh(t *testing.T) {
	fix := setup(t)
	usr := createUser(t, fix.usrSvc, "jane.doe@uni.edu")

	t.Run("missing token", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/token-refresh")
		fix.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			name:     "missing token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		}, rec)
	})

	t.Run("valid token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", getToken(t, usr))
		fix.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling LoginResponse: %v", err)
		}
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_accountApi_passwordResetFlow(t *testing.T) {
	fix := setup(t)
	createUser(t, fix.usrSvc, "jane.doe@uni.edu")

	neutral := "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with a verification code."

	// an unknown email gets the same answer as a known one
	req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset", marchallObj(t, EmailRequest{Email: "who@uni.edu"}))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "unknown email",
		wantCode: http.StatusOK,
		wantData: marchallObj(t, FlowResponse{State: "code_entry", Success: neutral}),
	}, rec)

	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset", marchallObj(t, EmailRequest{Email: "jane.doe@uni.edu"}))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "known email",
		wantCode: http.StatusOK,
		wantData: marchallObj(t, FlowResponse{State: "code_entry", Success: neutral}),
	}, rec)

	// an immediate repeat lands in the resend cooldown; the answer must not
	// change, or the rate limit would reveal which emails have accounts
	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset", marchallObj(t, EmailRequest{Email: "jane.doe@uni.edu"}))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "repeat request inside cooldown",
		wantCode: http.StatusOK,
		wantData: marchallObj(t, FlowResponse{State: "code_entry", Success: neutral}),
	}, rec)

	code := pendingCode(t, fix.resetStore, "jane.doe@uni.edu", otp.PurposeReset)

	// wrong code does not advance the flow
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset/verify",
		marchallObj(t, VerifyCodeRequest{Email: "jane.doe@uni.edu", Code: wrong}))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "wrong code",
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: otp.ErrInvalid.Error()}),
	}, rec)

	// right code
	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset/verify",
		marchallObj(t, VerifyCodeRequest{Email: "jane.doe@uni.edu", Code: code}))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "right code",
		wantCode: http.StatusOK,
		wantData: marchallObj(t, FlowResponse{State: "setting_password", Success: "Code verified."}),
	}, rec)

	// a weak password is rejected, the session survives
	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset/confirm",
		marchallObj(t, user.ResetUserPassword{
			Email: "jane.doe@uni.edu", Code: code, Password: "abc", PasswordConfirm: "abc",
		}))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// a strong one completes the reset
	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset/confirm",
		marchallObj(t, user.ResetUserPassword{
			Email: "jane.doe@uni.edu", Code: code, Password: "NewPwd123", PasswordConfirm: "NewPwd123",
		}))
	fix.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		name:     "confirm",
		wantCode: http.StatusOK,
		wantData: marchallObj(t, FlowResponse{State: "complete", Success: "Password has been reset with the new password."}),
	}, rec)

	// old password no longer works, new one does
	req, rec = newRequest(http.MethodPost, "/v1/auth/login",
		marchallObj(t, LoginRequest{Email: "jane.doe@uni.edu", Password: "Xkcd9367"}))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req, rec = newRequest(http.MethodPost, "/v1/auth/login",
		marchallObj(t, LoginRequest{Email: "jane.doe@uni.edu", Password: "NewPwd123"}))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the code was consumed
	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset/verify",
		marchallObj(t, VerifyCodeRequest{Email: "jane.doe@uni.edu", Code: code}))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_accountApi_passwordResetCancel(t *testing.T) {
	fix := setup(t)
	createUser(t, fix.usrSvc, "jane.doe@uni.edu")

	req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset", marchallObj(t, EmailRequest{Email: "jane.doe@uni.edu"}))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset/cancel", marchallObj(t, EmailRequest{Email: "jane.doe@uni.edu"}))
	fix.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := fix.resetStore.GetSession(req.Context(), "jane.doe@uni.edu", otp.PurposeReset)
	assert.Equal(t, otp.ErrNotFound, err)
}

func Test_accountApi_passwordStrength(t *testing.T) {
	fix := setup(t)

	tests := []httpTest{
		{
			name:     "strong",
			body:     marchallObj(t, PasswordStrengthRequest{Password: "Abcdef12"}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, PasswordStrengthResponse{
				Valid: true, Strength: 4, Label: "Strong",
				MinLength: true, HasUpper: true, HasLower: true, HasNumber: true,
			}),
		},
		{
			name:     "no uppercase",
			body:     marchallObj(t, PasswordStrengthRequest{Password: "abcdef12"}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, PasswordStrengthResponse{
				Valid: false, Strength: 3, Label: "Good",
				MinLength: true, HasLower: true, HasNumber: true,
			}),
		},
		{
			name:     "empty",
			body:     marchallObj(t, PasswordStrengthRequest{}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, PasswordStrengthResponse{Label: "Very Weak"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/password-strength", tt.body)
			fix.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
