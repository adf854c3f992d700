package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/contalibre/contalibre/internal/platform/httpx"
)

// CronJob pairs a cron expression with the task it fires.
type CronJob struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// Worker runs the background queue consumer and, when cron jobs are
// registered, the scheduler that feeds it.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker builds a worker consuming the default queue. Handlers maps task
// types to their asynq handlers; nil entries are rejected so a miswired main
// fails at startup rather than at first delivery.
func NewWorker(redisOpts asynq.RedisClientOpt, logger *slog.Logger, handlers map[string]asynq.Handler, cron []CronJob) (*Worker, error) {
	if len(handlers) == 0 {
		return nil, errors.New("worker: no task handlers registered")
	}
	mux := asynq.NewServeMux()
	for taskType, h := range handlers {
		if taskType == "" || h == nil {
			return nil, errors.New("worker: empty task registration")
		}
		mux.Handle(taskType, h)
	}

	server := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{QueueDefault: 1},
	})

	var scheduler *asynq.Scheduler
	if len(cron) > 0 {
		scheduler = asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, job := range cron {
			if _, err := scheduler.Register(job.Spec, job.Task, job.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: server, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// Run blocks until the context is cancelled or the server fails.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
		defer w.scheduler.Shutdown()
	}
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.logger.Info("worker shutting down")
	w.server.Shutdown()
	return ctx.Err()
}

// Client enqueues on-demand runs of the maintenance tasks.
type Client struct {
	client *asynq.Client
}

func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueLedgerIntegrity queues an immediate integrity scan.
func (c *Client) EnqueueLedgerIntegrity(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewLedgerIntegrityTask()
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task)
}

// EnqueueBalancesWarmup queues an immediate balance cache rebuild.
func (c *Client) EnqueueBalancesWarmup(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewBalancesWarmupTask()
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

func (c *Client) Close() error {
	return c.client.Close()
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Scheduled int    `json:"scheduled"`
}

// Handler exposes queue observability and on-demand job runs over HTTP.
type Handler struct {
	inspector *asynq.Inspector
	client    *Client
	logger    *slog.Logger
}

func NewHandler(inspector *asynq.Inspector, client *Client, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, client: client, logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/integridad", h.runIntegrity)
	r.Post("/warmup", h.runWarmup)
}

func (h *Handler) runIntegrity(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, func(ctx context.Context) (*asynq.TaskInfo, error) {
		return h.client.EnqueueLedgerIntegrity(ctx)
	})
}

func (h *Handler) runWarmup(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, func(ctx context.Context) (*asynq.TaskInfo, error) {
		return h.client.EnqueueBalancesWarmup(ctx)
	})
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request, enqueue func(context.Context) (*asynq.TaskInfo, error)) {
	if h.client == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "the job queue is not configured")
		return
	}
	info, err := enqueue(r.Context())
	if err != nil {
		h.logger.Error("enqueue job", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "the job could not be enqueued")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"id": info.ID, "cola": info.Queue})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	health := queueHealth{Queue: QueueDefault}
	if h.inspector != nil {
		info, err := h.inspector.GetQueueInfo(QueueDefault)
		if err != nil {
			h.logger.Warn("queue health check failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "the job queue could not be inspected")
			return
		}
		health.Pending = info.Pending
		health.Active = info.Active
		health.Retry = info.Retry
		health.Scheduled = info.Scheduled
	}
	httpx.JSON(w, http.StatusOK, health)
}
