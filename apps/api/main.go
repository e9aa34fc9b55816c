package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/kasuku/mwelekeo/apps/api/echo"
	"github.com/kasuku/mwelekeo/core"
	"github.com/kasuku/mwelekeo/core/assessment"
	"github.com/kasuku/mwelekeo/core/otp"
	"github.com/kasuku/mwelekeo/core/presence"
	"github.com/kasuku/mwelekeo/core/reset"
	"github.com/kasuku/mwelekeo/core/signup"
	"github.com/kasuku/mwelekeo/core/user"
	emailsvc "github.com/kasuku/mwelekeo/services/email"
	logsvc "github.com/kasuku/mwelekeo/services/logger"
	"github.com/kasuku/mwelekeo/storage/database"
	inmemdb "github.com/kasuku/mwelekeo/storage/database/inmem"
	sqlxrepos "github.com/kasuku/mwelekeo/storage/database/sqlx"
)

const presenceTTL = 90 * time.Second

func main() {
	core.InitConf()

	// set up logger
	var logger core.Logger
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	if core.Conf.RollbarToken != "" {
		rbLogger := logsvc.NewRollbarLogger(std, core.Conf)
		rbLogger.Enable(!core.Conf.Debug)
		logger = rbLogger
	} else {
		logger = core.NewStdLogger(std)
	}

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	// set up repositories
	var (
		userRepo       user.Repository
		assessmentRepo assessment.Repository
		resetStore     otp.SessionStore
	)
	if core.Conf.DatabaseURL != "" {
		db, err := database.Open(core.Conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() { _ = db.Close() }()

		if err = database.Migrate(db, filepath.Join(core.Conf.WorkDir, "storage", "database", "migrations")); err != nil {
			logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}

		userRepo = sqlxrepos.NewUserRepository(db)
		assessmentRepo = sqlxrepos.NewAssessmentRepository(db)
		resetStore = sqlxrepos.NewSessionStore(db)
	} else {
		memdb, _ := inmemdb.Open()
		userRepo = inmemdb.NewUserRepository(memdb)
		assessmentRepo = inmemdb.NewAssessmentRepository(memdb)
		resetStore = otp.NewMemorySessionStore()
	}

	// set up services
	var mailSvc core.EmailService
	if core.Conf.SendgridAPIKey != "" && !core.Conf.Debug {
		mailSvc = emailsvc.NewSendgridService(logger)
	} else {
		mailSvc = emailsvc.NewConsoleService()
	}

	usrSvc := user.NewService(userRepo)
	signupCodes := otp.NewService(otp.NewMemorySessionStore(), mailSvc)
	resetCodes := otp.NewService(resetStore, mailSvc)
	signupOrc := signup.NewOrchestrator(usrSvc, signupCodes, mailSvc)
	defer signupOrc.Close()
	resetOrc := reset.NewOrchestrator(usrSvc, resetCodes, mailSvc)
	assessmentSvc := assessment.NewService(assessmentRepo)

	reg := presence.NewRegistry(presenceTTL)
	defer reg.Close()

	// start API server
	server := echoapi.NewServer(&echoapi.Options{
		Address:       core.Conf.Address(),
		Logger:        logger,
		UserSvc:       usrSvc,
		SignupOrc:     signupOrc,
		ResetOrc:      resetOrc,
		AssessmentSvc: assessmentSvc,
		Presence:      reg,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}
