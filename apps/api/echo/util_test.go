package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/kasuku/mwelekeo/apps/api/echo"
	"github.com/kasuku/mwelekeo/core"
	"github.com/kasuku/mwelekeo/core/assessment"
	"github.com/kasuku/mwelekeo/core/otp"
	"github.com/kasuku/mwelekeo/core/presence"
	"github.com/kasuku/mwelekeo/core/reset"
	"github.com/kasuku/mwelekeo/core/signup"
	"github.com/kasuku/mwelekeo/core/user"
	emailsvc "github.com/kasuku/mwelekeo/services/email"
	inmemdb "github.com/kasuku/mwelekeo/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func TestMain(m *testing.M) {
	core.Conf = &core.Config{
		TestMode:         true,
		AppName:          "Mwelekeo",
		WorkDir:          core.Getwd(),
		SecretKey:        []byte("secret"),
		DefaultFromEmail: mail.Address{Name: "Mwelekeo", Address: "noreply@mwelekeo.app"},
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		OTP: core.OTPConfig{
			SignupTimeout:  10 * time.Minute,
			ResetTimeout:   10 * time.Minute,
			ResendCooldown: time.Minute,
			MaxAttempts:    5,
		},
	}
	os.Exit(m.Run())
}

type fixture struct {
	app         Server
	usrSvc      *user.Service
	signupStore *otp.MemorySessionStore
	resetStore  *otp.MemorySessionStore
	assessSvc   *assessment.Service
	presence    *presence.Registry
}

func setup(t *testing.T) fixture {
	t.Helper()

	memdb, _ := inmemdb.Open()
	usrSvc := user.NewService(inmemdb.NewUserRepository(memdb))
	assessSvc := assessment.NewService(inmemdb.NewAssessmentRepository(memdb))
	mailSvc := emailsvc.NewConsoleServiceMock()

	signupStore := otp.NewMemorySessionStore()
	resetStore := otp.NewMemorySessionStore()
	signupOrc := signup.NewOrchestrator(usrSvc, otp.NewService(signupStore, mailSvc), mailSvc)
	t.Cleanup(signupOrc.Close)
	resetOrc := reset.NewOrchestrator(usrSvc, otp.NewService(resetStore, mailSvc), mailSvc)

	reg := presence.NewRegistry(time.Minute)
	t.Cleanup(reg.Close)

	app := NewServer(&Options{
		DisableReqLogs: true,
		Logger:         core.NewStdLogger(log.New(io.Discard, "", 0)),
		UserSvc:        usrSvc,
		SignupOrc:      signupOrc,
		ResetOrc:       resetOrc,
		AssessmentSvc:  assessSvc,
		Presence:       reg,
	})

	return fixture{
		app:         app,
		usrSvc:      usrSvc,
		signupStore: signupStore,
		resetStore:  resetStore,
		assessSvc:   assessSvc,
		presence:    reg,
	}
}

func createUser(t *testing.T, svc *user.Service, email string, roles ...string) user.User {
	t.Helper()
	usr, err := svc.Create(context.Background(), user.NewUser{
		FirstName:       "Jane",
		LastName:        "Doe",
		Email:           email,
		Password:        "Xkcd9367",
		PasswordConfirm: "Xkcd9367",
		Course:          "BSIT",
		YearLevel:       2,
		AcceptTerms:     true,
		Roles:           roles,
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
	return usr
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("%s: code = %d; want %d; body = %s", tt.name, rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Fatalf("%s: comparing response: %v", tt.name, err)
	}
	if !ok {
		t.Errorf("%s: body = %s; want %s", tt.name, rec.Body.String(), tt.wantData)
	}
}

func pendingCode(t *testing.T, store *otp.MemorySessionStore, email string, purpose otp.Purpose) string {
	t.Helper()
	sess, err := store.GetSession(context.Background(), email, purpose)
	if err != nil {
		t.Fatalf("no pending code for %s: %v", email, err)
	}
	return sess.Code
}
