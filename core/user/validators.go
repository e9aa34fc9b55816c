package user

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/kasuku/mwelekeo/core"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"

	// password policy; each rule has its own tag so clients can tell
	// exactly which requirement was missed.
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdUpperTag  = "pwdupper"
	pwdUpperText = "password must contain at least 1 uppercase character"

	pwdLowerTag  = "pwdlower"
	pwdLowerText = "password must contain at least 1 lowercase character"

	pwdDigitTag  = "pwddigit"
	pwdDigitText = "password must contain at least 1 digit"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password is too similar to your name or email"
)

func init() {
	// register validators
	_ = core.Validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(allRolesTag, allRolesText)

	core.Validate.RegisterStructValidation(userStructValidation, NewUser{})
	core.Validate.RegisterStructValidation(userStructValidation, UpdateUser{})
	core.Validate.RegisterStructValidation(userStructValidation, ResetUserPassword{})
	core.RegisterCustomTranslation(pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(pwdUpperTag, pwdUpperText)
	core.RegisterCustomTranslation(pwdLowerTag, pwdLowerText)
	core.RegisterCustomTranslation(pwdDigitTag, pwdDigitText)
	core.RegisterCustomTranslation(pwdAttrSimTag, pwdAttrSimText)
}

// PasswordCheck holds the result of each password requirement, evaluated
// independently so callers can surface progressive feedback.
type PasswordCheck struct {
	MinLength bool `json:"min_length"`
	HasUpper  bool `json:"has_uppercase"`
	HasLower  bool `json:"has_lowercase"`
	HasNumber bool `json:"has_number"`
}

// Valid reports whether all four requirements hold. There is no partial
// credit toward account creation.
func (c PasswordCheck) Valid() bool {
	return c.MinLength && c.HasUpper && c.HasLower && c.HasNumber
}

// Strength counts satisfied requirements: 0..4.
func (c PasswordCheck) Strength() int {
	var n int
	for _, ok := range []bool{c.MinLength, c.HasUpper, c.HasLower, c.HasNumber} {
		if ok {
			n++
		}
	}
	return n
}

var strengthLabels = [...]string{"Very Weak", "Weak", "Fair", "Good", "Strong"}

func (c PasswordCheck) StrengthLabel() string {
	return strengthLabels[c.Strength()]
}

// CheckPassword evaluates the password policy. Malformed input simply
// yields false requirements; it never fails.
func CheckPassword(pwd string) PasswordCheck {
	check := PasswordCheck{MinLength: len(pwd) >= pwdMinLen}
	for _, char := range pwd {
		switch {
		case unicode.IsUpper(char):
			check.HasUpper = true
		case unicode.IsLower(char):
			check.HasLower = true
		case unicode.IsDigit(char):
			check.HasNumber = true
		}
	}
	return check
}

// SimilarToAttributes reports whether pwd closely matches any of the given
// user attributes (name, email...).
func SimilarToAttributes(pwd string, attrs ...string) bool {
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(pwd, ""), strings.Split(attr, "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return true
		}
	}
	return false
}

// Custom Validators

// allRolesValidation checks that provided user roles are all in AllRoles.
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		var found bool
		for _, known := range AllRoles {
			if role == known {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// userStructValidation does struct level validation on NewUser and UpdateUser structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validatePassword(usr.Password, sl, usr.Email, usr.FirstName, usr.LastName)
	case UpdateUser:
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.Email, usr.FirstName, usr.LastName)
		}
	case ResetUserPassword:
		validatePassword(usr.Password, sl, usr.Email)
	}
}

// validatePassword applies the password policy; the first missed
// requirement is reported.
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	check := CheckPassword(pwd)
	switch {
	case !check.MinLength:
		reportErr(pwdMinLenTag)
		return
	case !check.HasUpper:
		reportErr(pwdUpperTag)
		return
	case !check.HasLower:
		reportErr(pwdLowerTag)
		return
	case !check.HasNumber:
		reportErr(pwdDigitTag)
		return
	}

	if SimilarToAttributes(pwd, attrs...) {
		reportErr(pwdAttrSimTag)
	}
}
