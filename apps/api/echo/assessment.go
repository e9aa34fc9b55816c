package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kasuku/mwelekeo/core/assessment"
	"github.com/kasuku/mwelekeo/core/user"
)

type assessmentApi struct {
	svc     *assessment.Service
	userSvc *user.Service
}

func registerAssessmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *assessment.Service, userSvc *user.Service) {
	api := assessmentApi{svc: svc, userSvc: userSvc}

	ag := g.Group("/assessments", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update, adminMiddleware())
	ag.POST("/:id/attempts", api.recordAttempt)

	pg := g.Group("/analytics", jwt)
	pg.GET("/progress", api.progress)
	pg.GET("/overview", api.overview)
	pg.GET("/cohort", api.cohort, staffMiddleware())
}

// Handlers

func (api *assessmentApi) query(ctx echo.Context) error {
	defs, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	// students only see published assessments
	if !(claims.IsAdmin || claims.IsCounselor) {
		published := make([]assessment.Assessment, 0, len(defs))
		for _, def := range defs {
			if def.IsPublished {
				published = append(published, def)
			}
		}
		defs = published
	}
	if defs == nil {
		defs = []assessment.Assessment{}
	}
	return ctx.JSON(http.StatusOK, defs)
}

func (api *assessmentApi) create(ctx echo.Context) error {
	var data assessment.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == assessment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding assessment by ID")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) update(ctx echo.Context) error {
	var data assessment.UpdateAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssessment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if err == assessment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting assessments")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assessmentApi) recordAttempt(ctx echo.Context) error {
	var data assessment.NewAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttempt")
	}
	data.AssessmentID = ctx.Param("id")
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	att, err := api.svc.RecordAttempt(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		if err == assessment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "recording attempt")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *assessmentApi) progress(ctx echo.Context) error {
	userID, err := api.targetUserID(ctx)
	if err != nil {
		return err
	}

	progress, err := api.svc.ProgressFor(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying progress")
	}
	if progress == nil {
		progress = []assessment.Progress{}
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *assessmentApi) overview(ctx echo.Context) error {
	userID, err := api.targetUserID(ctx)
	if err != nil {
		return err
	}

	overview, err := api.svc.OverviewFor(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying overview")
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (api *assessmentApi) cohort(ctx echo.Context) error {
	stats, err := api.svc.CohortAnalytics(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying cohort analytics")
	}
	if stats == nil {
		stats = []assessment.CohortStats{}
	}
	return ctx.JSON(http.StatusOK, stats)
}

// targetUserID resolves whose analytics are requested: the caller's own,
// or - for staff - any student's via the `user` query param.
func (api *assessmentApi) targetUserID(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	if id := ctx.QueryParam("user"); id != "" && id != claims.Subject {
		if !(claims.IsAdmin || claims.IsCounselor) {
			return "", errHttpForbidden
		}
		return id, nil
	}
	return claims.Subject, nil
}
