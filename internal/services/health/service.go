package health

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

type CheckFunc func(ctx context.Context) error

type Dependency struct {
	Name  string
	Check CheckFunc
}

type Component struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Status     string      `json:"status"`
	CheckedAt  time.Time   `json:"checkedAt"`
	Components []Component `json:"components"`
}

type Service struct {
	deps    []Dependency
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(timeout time.Duration, logger *zap.Logger, deps ...Dependency) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		deps:    deps,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// HTTPDependency checks an upstream endpoint through the api client, so the
// check follows the same routing as real traffic.
func HTTPDependency(name string, client *apiclient.Client, path string) Dependency {
	return Dependency{
		Name: name,
		Check: func(ctx context.Context) error {
			_, err := client.Fetch(ctx, path, apiclient.Options{Method: http.MethodGet})
			return err
		},
	}
}

// Check runs every dependency concurrently. A failing one never cancels the
// others; it only marks its own component as down.
func (s *Service) Check(ctx context.Context) Report {
	components := make([]Component, len(s.deps))

	var g errgroup.Group
	for i, dep := range s.deps {
		i, dep := i, dep
		g.Go(func() error {
			components[i] = s.run(ctx, dep)
			return nil
		})
	}
	_ = g.Wait()

	status := StatusOK
	for _, c := range components {
		if c.Status != StatusOK {
			status = StatusDegraded
			break
		}
	}

	return Report{
		Status:     status,
		CheckedAt:  s.now().UTC(),
		Components: components,
	}
}

func (s *Service) run(ctx context.Context, dep Dependency) Component {
	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := dep.Check(checkCtx)
	component := Component{
		Name:      dep.Name,
		Status:    StatusOK,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		component.Status = StatusDown
		component.Error = err.Error()
		s.logger.Warn("health check failed", zap.String("component", dep.Name), zap.Error(err))
	}
	return component
}
