package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	appfs "github.com/kazihub/kazi"
	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/automation"
	"github.com/kazihub/kazi/core/notification"
	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
	emailsvc "github.com/kazihub/kazi/services/email"
	logsvc "github.com/kazihub/kazi/services/logger"
	realtimesvc "github.com/kazihub/kazi/services/realtime"
	"github.com/kazihub/kazi/storage/database"
	postgresrepos "github.com/kazihub/kazi/storage/database/postgres"
)

// The scheduler runs the escalation engine on a fixed interval.
// It shares nothing with the API process but the database and the broker.
func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	std := log.New(os.Stdout, "SCHED : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()

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

	usrSvc := user.NewService(conf, postgresrepos.NewUserRepository(db), mailSvc, logger)
	taskSvc := task.NewService(postgresrepos.NewTaskRepository(db), broker, logger)
	notifSvc := notification.NewService(conf, postgresrepos.NewNotificationRepository(db), usrSvc, mailSvc, broker, logger)
	autoSvc := automation.NewService(postgresrepos.NewAutomationRepository(db))

	engine := automation.NewEngine(autoSvc, taskSvc, usrSvc, notifSvc, logger)

	// =========================================================================
	// Schedule Scans

	cronLogger := cron.PrintfLogger(std)
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))
	c.Schedule(cron.Every(conf.Scheduler.ScanInterval), cron.FuncJob(func() {
		summary, err := engine.Run(context.Background())
		if err != nil {
			logger.Error("escalation scan failed", err)
			return
		}
		logger.Info(fmt.Sprintf(
			"escalation scan done in %s: %d rule(s), %d scanned, %d notified, %d reassigned, %d moved, %d failure(s)",
			summary.Duration.Round(time.Millisecond), summary.Rules, summary.Scanned,
			summary.Notified, summary.Reassigned, summary.Moved, summary.Failures,
		))
	}))

	logger.Info(fmt.Sprintf("Scheduler starting : scanning every %s", conf.Scheduler.ScanInterval))
	c.Start()
	defer logger.Info("Scheduler stopped")

	// =========================================================================
	// Shutdown

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// wait for a running scan to finish
	<-c.Stop().Done()
}
