package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kasuku/mwelekeo/core"
	"github.com/kasuku/mwelekeo/core/reset"
	"github.com/kasuku/mwelekeo/core/signup"
	"github.com/kasuku/mwelekeo/core/user"
)

type accountApi struct {
	svc       *user.Service
	signupOrc *signup.Orchestrator
	resetOrc  *reset.Orchestrator
}

func registerAccountAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *user.Service,
	signupOrc *signup.Orchestrator,
	resetOrc *reset.Orchestrator,
) {
	api := accountApi{svc: svc, signupOrc: signupOrc, resetOrc: resetOrc}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/signup/*` & `/password-reset/*`
	ag.POST("/signup/start", api.signupStart)
	ag.POST("/signup/confirm", api.signupConfirm)
	ag.POST("/signup/resend", api.signupResend)
	ag.POST("/signup/cancel", api.signupCancel)

	ag.POST("/login", api.login)

	ag.POST("/password-reset", api.resetRequest)
	ag.POST("/password-reset/resend", api.resetResend)
	ag.POST("/password-reset/verify", api.resetVerify)
	ag.POST("/password-reset/confirm", api.resetConfirm)
	ag.POST("/password-reset/cancel", api.resetCancel)

	ag.POST("/password-strength", api.passwordStrength)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

// Handlers

func (api *accountApi) signupStart(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	state, err := api.signupOrc.Start(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, FlowResponse{
		State:   state.String(),
		Success: "A verification code has been sent to your email address.",
	})
}

func (api *accountApi) signupConfirm(ctx echo.Context) error {
	var data VerifyCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyCodeRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, state, err := api.signupOrc.Confirm(ctx.Request().Context(), data.Email, data.Code)
	if err != nil {
		return err
	}

	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, SignupResponse{
		State: state.String(),
		User:  usr,
		Token: token,
	})
}

func (api *accountApi) signupResend(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	state, err := api.signupOrc.Resend(ctx.Request().Context(), data.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, FlowResponse{
		State:   state.String(),
		Success: "A new verification code has been sent to your email address.",
	})
}

func (api *accountApi) signupCancel(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	api.signupOrc.Cancel(ctx.Request().Context(), data.Email)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *accountApi) resetRequest(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	state, err := api.resetOrc.Request(ctx.Request().Context(), data.Email)
	if err != nil {
		return err
	}
	// do not reveal whether the email exists
	return ctx.JSON(http.StatusOK, FlowResponse{
		State: state.String(),
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with a verification code.",
	})
}

func (api *accountApi) resetResend(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	state, err := api.resetOrc.Resend(ctx.Request().Context(), data.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, FlowResponse{
		State:   state.String(),
		Success: "A new verification code has been sent.",
	})
}

func (api *accountApi) resetVerify(ctx echo.Context) error {
	var data VerifyCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyCodeRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	state, err := api.resetOrc.VerifyCode(ctx.Request().Context(), data.Email, data.Code)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, FlowResponse{State: state.String(), Success: "Code verified."})
}

func (api *accountApi) resetConfirm(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}

	state, err := api.resetOrc.Complete(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, FlowResponse{
		State:   state.String(),
		Success: "Password has been reset with the new password.",
	})
}

func (api *accountApi) resetCancel(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	api.resetOrc.Cancel(ctx.Request().Context(), data.Email)
	return ctx.NoContent(http.StatusNoContent)
}

// passwordStrength gives live feedback while the user types a password.
func (api *accountApi) passwordStrength(ctx echo.Context) error {
	var data PasswordStrengthRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordStrengthRequest")
	}

	check := user.CheckPassword(data.Password)
	return ctx.JSON(http.StatusOK, PasswordStrengthResponse{
		Valid:     check.Valid(),
		Strength:  check.Strength(),
		Label:     check.StrengthLabel(),
		MinLength: check.MinLength,
		HasUpper:  check.HasUpper,
		HasLower:  check.HasLower,
		HasNumber: check.HasNumber,
	})
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// Request / Response types

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	EmailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	VerifyCodeRequest struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required"`
	}

	PasswordStrengthRequest struct {
		Password string `json:"password"`
	}

	PasswordStrengthResponse struct {
		Valid     bool   `json:"valid"`
		Strength  int    `json:"strength"`
		Label     string `json:"label"`
		MinLength bool   `json:"min_length"`
		HasUpper  bool   `json:"has_upper"`
		HasLower  bool   `json:"has_lower"`
		HasNumber bool   `json:"has_number"`
	}

	FlowResponse struct {
		State   string `json:"state"`
		Success string `json:"success,omitempty"`
	}

	SignupResponse struct {
		State string    `json:"state"`
		User  user.User `json:"user"`
		Token string    `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}

func (er *EmailRequest) Validate() error {
	er.Email = core.CleanString(er.Email, true /* lower */)
	return core.Validate.Struct(er)
}

func (vr *VerifyCodeRequest) Validate() error {
	vr.Email = core.CleanString(vr.Email, true /* lower */)
	vr.Code = core.CleanString(vr.Code)
	return core.Validate.Struct(vr)
}
