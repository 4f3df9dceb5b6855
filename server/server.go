// Package server exposes the chat session manager and its companion services over HTTP.
package server

import (
	"context"
	"errors"
	"time"

	hzserver "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/zishu-lab/jobchat"
	"github.com/zishu-lab/jobchat/courses"
	"github.com/zishu-lab/jobchat/jobs"
	"github.com/zishu-lab/jobchat/observability"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	defaultWriteTimeout    = 5 * time.Minute
)

// Options wires the server to its collaborators. Sessions is required; a nil
// Catalogue or Jobs client disables the routes that need it.
type Options struct {
	Addr         string
	Sessions     *jobchat.SessionManager
	Courses      *courses.Store
	Catalogue    *courses.Client
	Jobs         *jobs.Client
	CityDataPath string
	Logger       observability.Logger

	ShutdownTimeout time.Duration
}

// Server holds the route handlers.
type Server struct {
	opts   Options
	logger observability.Logger

	chat   *chatHandler
	course *courseHandler
	job    *jobsHandler
	city   *cityHandler
}

// New creates a Server from opts.
func New(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, errors.New("server: session manager is required")
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNullLogger()
	}
	if opts.Courses == nil {
		opts.Courses = courses.NewStore()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	logger := opts.Logger.WithFields(map[string]interface{}{"component": "server"})

	return &Server{
		opts:   opts,
		logger: logger,
		chat:   &chatHandler{sessions: opts.Sessions, courses: opts.Courses, logger: logger},
		course: &courseHandler{store: opts.Courses, catalogue: opts.Catalogue, logger: logger},
		job:    &jobsHandler{client: opts.Jobs, logger: logger},
		city:   newCityHandler(opts.CityDataPath),
	}, nil
}

// Register installs the middleware chain and every route on engine.
func (s *Server) Register(engine *route.Engine) {
	engine.Use(Recovery(s.logger), RequestLogger(s.logger), CORS())

	engine.GET("/health", s.city.health)

	api := engine.Group("/api")

	ai := api.Group("/ai")
	ai.POST("/send-courses", s.course.sendCourses)
	ai.GET("/courses", s.course.list)

	api.GET("/courses/catalogue", s.course.getCatalogue)

	chat := api.Group("/chat")
	chat.POST("", s.chat.send)
	chat.POST("/conversations", s.chat.create)
	chat.GET("/conversations", s.chat.list)
	chat.GET("/:id/history", s.chat.history)
	chat.DELETE("/:id", s.chat.clear)

	jobsGroup := api.Group("/jobs")
	jobsGroup.POST("/search", s.job.search)
	jobsGroup.POST("/subscribe", s.job.subscribe)
	jobsGroup.GET("/subscriptions", s.job.subscriptions)
	jobsGroup.DELETE("/subscription/:id", s.job.deleteSubscription)
	jobsGroup.PUT("/subscription/:id/emails", s.job.updateSubscriptionEmails)

	api.GET("/user/emails", s.job.userEmails)
	api.PUT("/user/emails", s.job.updateUserEmails)

	api.GET("/cities", s.city.getTaxonomy)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	h := hzserver.New(
		hzserver.WithHostPorts(s.opts.Addr),
		hzserver.WithWriteTimeout(defaultWriteTimeout),
		hzserver.WithExitWaitTime(s.opts.ShutdownTimeout),
	)
	s.Register(h.Engine)

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Run()
	}()

	s.logger.WithFields(map[string]interface{}{"address": s.opts.Addr}).Info("server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	return h.Shutdown(shutdownCtx)
}
