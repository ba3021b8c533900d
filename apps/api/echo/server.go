package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/automation"
	"github.com/kazihub/kazi/core/chat"
	"github.com/kazihub/kazi/core/notification"
	"github.com/kazihub/kazi/core/presence"
	"github.com/kazihub/kazi/core/report"
	"github.com/kazihub/kazi/core/syncq"
	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		Broker      core.Broker
		UserSvc     user.Service
		TaskSvc     task.Service
		ChatSvc     chat.Service
		NotifSvc    notification.Service
		PresenceSvc presence.Service
		AutoSvc     automation.Service
		ReportSvc   report.Service
		SyncSvc     syncq.Service
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		opts       *Options
		app        *echo.Echo
		jwtConfig  middleware.JWTConfig
		errCh      chan error
		shutdownCh chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:       opts,
		app:        echo.New(),
		jwtConfig:  newJWTConfig(opts.Conf),
		errCh:      make(chan error, 1),
		shutdownCh: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.jwtConfig)

	registerUserAPI(v1, jwt, s.opts.Conf, s.opts.UserSvc)
	registerTaskAPI(v1, jwt, s.opts.TaskSvc, s.opts.UserSvc)
	registerChatAPI(v1, jwt, s.opts.ChatSvc, s.opts.UserSvc, s.opts.Broker)
	registerNotificationAPI(v1, jwt, s.opts.NotifSvc, s.opts.UserSvc, s.opts.Broker)
	registerPresenceAPI(v1, jwt, s.opts.PresenceSvc, s.opts.UserSvc)
	registerAutomationAPI(v1, jwt, s.opts.AutoSvc)
	registerReportAPI(v1, jwt, s.opts.ReportSvc)
	registerSyncAPI(v1, jwt, s.opts.SyncSvc)
}

func (s *server) Start() {
	if err := s.app.Start(s.opts.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errCh <- err
	}
}

func (s *server) Errors() <-chan error             { return s.errCh }
func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdownCh }

// signalShutdown requests a graceful shutdown; used on core.shutdown errors.
func (s *server) signalShutdown() {
	s.shutdownCh <- syscall.SIGTERM
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Kazi API!")
}
