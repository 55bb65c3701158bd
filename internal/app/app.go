// Package app assembles the gateway: storage, portal client, client-side
// state holders and the echo server in front of them.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/attendance"
	"github.com/iliyamo/classsync/internal/classsession"
	"github.com/iliyamo/classsync/internal/config"
	"github.com/iliyamo/classsync/internal/dashboard"
	"github.com/iliyamo/classsync/internal/geo"
	"github.com/iliyamo/classsync/internal/handler"
	"github.com/iliyamo/classsync/internal/identity"
	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	"github.com/iliyamo/classsync/internal/repository"
	"github.com/iliyamo/classsync/internal/router"
	"github.com/iliyamo/classsync/internal/scan"
	"github.com/iliyamo/classsync/internal/service"
	"github.com/iliyamo/classsync/internal/toast"
)

// Options configure an App.
type Options struct {
	Config config.Config
	// KV is the durable store for the identity and the timetable cache.
	KV repository.KV
	// Events receives activity events; nil discards them.
	Events service.Publisher
	// DisableReqLogs turns off per-request logging (tests).
	DisableReqLogs bool
}

// App is a wired gateway.
type App struct {
	Echo     *echo.Echo
	Portal   *portal.Client
	Identity *identity.Store
	Toasts   *toast.Queue
	Surfaces *scan.Registry
	Student  *dashboard.Student
	Teacher  *dashboard.Teacher
	Session  *classsession.Controller

	addr   string
	cancel context.CancelFunc
}

// New wires every component.  Nothing talks to the backend until Restore
// or the first request.
func New(opts Options) *App {
	cfg := opts.Config
	events := opts.Events
	if events == nil {
		events = service.Discard{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	client := portal.New(cfg.APIBase, cfg.HTTPTimeout)
	toasts := toast.New(cfg.ToastTTL)
	surfaces := scan.NewRegistry(ctx)

	timetables := repository.NewTimetableRepo(opts.KV, cfg.Cache.Prefix)
	student := dashboard.NewStudent(client, toasts, timetables)
	student.StaleAfter = cfg.Cache.StaleAfter
	teacher := dashboard.NewTeacher(client, toasts)

	session := classsession.NewController(client, teacher, toasts, events)
	if cfg.GeoTimeout > 0 {
		session.GeoTimeout = cfg.GeoTimeout
	}
	if cfg.ExpectedTotal > 0 {
		session.ExpectedTotal = cfg.ExpectedTotal
	}
	submitter := attendance.NewSubmitter(client, toasts, student, events, cfg.GeoTimeout)

	store := identity.NewStore(client, repository.NewIdentityRepo(opts.KV), toasts)
	store.OnLogout = func() {
		surfaces.CloseAll()
		session.Clear()
		student.Clear()
		teacher.Clear()
	}

	a := &App{
		Echo:     echo.New(),
		Portal:   client,
		Identity: store,
		Toasts:   toasts,
		Surfaces: surfaces,
		Student:  student,
		Teacher:  teacher,
		Session:  session,
		addr:     ":" + cfg.Port,
		cancel:   cancel,
	}

	var loc geo.Locator = geo.Unavailable{}
	if cfg.GeoFix != nil {
		loc = geo.Static(model.Position{Lat: cfg.GeoFix.Lat, Lng: cfg.GeoFix.Lng})
	}

	e := a.Echo
	e.HideBanner = true
	e.HidePort = true
	e.Pre(echomw.RemoveTrailingSlash())
	if !opts.DisableReqLogs {
		e.Use(echomw.Logger())
	}
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{LogLevel: log.ERROR}))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(store), store)
	router.RegisterToasts(e, handler.NewToastHandler(toasts), store)
	router.RegisterStudent(e, handler.NewStudentHandler(student, surfaces, submitter, toasts, loc), store)
	router.RegisterTeacher(e, handler.NewTeacherHandler(teacher, session, loc), store)
	return a
}

// Restore signs back in with the persisted identity, if it is still valid.
func (a *App) Restore(ctx context.Context) {
	id, err := a.Identity.Restore(ctx)
	if err != nil {
		log.Infof("app: starting signed out (%v)", err)
		return
	}
	log.Infof("app: resumed as %s %s", id.Role, id.User.ID)
}

// Start serves until the server is shut down.
func (a *App) Start() error {
	log.Infof("app: listening on %s", a.addr)
	if err := a.Echo.Start(a.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down and abandons all client-side work.
func (a *App) Stop(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	a.Close()
	return err
}

// Close releases the state holders without touching the server.
func (a *App) Close() {
	a.cancel()
	a.Surfaces.CloseAll()
	a.Toasts.Close()
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) { a.Echo.ServeHTTP(w, r) }

// ShutdownTimeout bounds a graceful stop.
const ShutdownTimeout = 10 * time.Second
