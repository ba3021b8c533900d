package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	appfs "github.com/kazihub/kazi"
	echoapi "github.com/kazihub/kazi/apps/api/echo"
	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/automation"
	"github.com/kazihub/kazi/core/chat"
	"github.com/kazihub/kazi/core/notification"
	"github.com/kazihub/kazi/core/presence"
	"github.com/kazihub/kazi/core/report"
	"github.com/kazihub/kazi/core/syncq"
	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
	emailsvc "github.com/kazihub/kazi/services/email"
	logsvc "github.com/kazihub/kazi/services/logger"
	realtimesvc "github.com/kazihub/kazi/services/realtime"
	"github.com/kazihub/kazi/storage/database"
	postgresrepos "github.com/kazihub/kazi/storage/database/postgres"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	core.SetTemplatesFS(appfs.FS)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	broker, err := realtimesvc.Connect(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to nats: %v", err), err)
	}
	defer broker.Close()

	// set up services
	usrSvc := user.NewService(conf, postgresrepos.NewUserRepository(db), mailSvc, logger)
	taskSvc := task.NewService(postgresrepos.NewTaskRepository(db), broker, logger)
	chatSvc := chat.NewService(postgresrepos.NewChatRepository(db), broker, logger)
	notifSvc := notification.NewService(conf, postgresrepos.NewNotificationRepository(db), usrSvc, mailSvc, broker, logger)
	presenceSvc := presence.NewService(conf, postgresrepos.NewPresenceRepository(db))
	autoSvc := automation.NewService(postgresrepos.NewAutomationRepository(db))
	reportSvc := report.NewService(conf, taskSvc, usrSvc, mailSvc)
	syncSvc := syncq.NewService(postgresrepos.NewSyncRepository(db), taskSvc, logger)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(&echoapi.Options{
		Conf:        conf,
		Logger:      logger,
		Broker:      broker,
		UserSvc:     usrSvc,
		TaskSvc:     taskSvc,
		ChatSvc:     chatSvc,
		NotifSvc:    notifSvc,
		PresenceSvc: presenceSvc,
		AutoSvc:     autoSvc,
		ReportSvc:   reportSvc,
		SyncSvc:     syncSvc,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}
