// Package app owns the service lifecycle: startup sequencing, the readiness
// and liveness predicates, and graceful shutdown. It is the only component
// allowed to clear the session registry wholesale.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/kritika-bot/kritika/internal/config"
	"github.com/kritika-bot/kritika/internal/convo"
	"github.com/kritika-bot/kritika/internal/gemini"
	"github.com/kritika-bot/kritika/internal/handler"
	"github.com/kritika-bot/kritika/internal/httpapi"
	"github.com/kritika-bot/kritika/internal/logger"
	"github.com/kritika-bot/kritika/internal/secrets"
	"github.com/kritika-bot/kritika/internal/telegram"
)

// FSM states.
type lifecycleState stateless.State

var (
	StateUninitialized lifecycleState = "uninitialized"
	StateStarting      lifecycleState = "starting"
	StateRunning       lifecycleState = "running"
	StateShuttingDown  lifecycleState = "shutting_down"
	StateStopped       lifecycleState = "stopped"
	StateFailed        lifecycleState = "failed"
)

// FSM triggers.
type lifecycleTrigger stateless.Trigger

var (
	triggerStart    lifecycleTrigger = "Start"
	triggerStarted  lifecycleTrigger = "Started"
	triggerShutdown lifecycleTrigger = "Shutdown"
	triggerStopped  lifecycleTrigger = "Stopped"
	triggerFailed   lifecycleTrigger = "Failed"
)

const drainTimeout = 5 * time.Second

// ModelFactory builds the model client once the API key is resolved.
type ModelFactory func(ctx context.Context, apiKey string) (gemini.Client, error)

// Options override collaborators; zero values get production defaults.
type Options struct {
	Secrets         secrets.Provider
	ModelFactory    ModelFactory
	TelegramBaseURL string
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// App is the lifecycle controller.
type App struct {
	cfg  *config.Config
	opts Options
	log  *slog.Logger
	fsm  *stateless.StateMachine

	registry *convo.Registry
	model    gemini.Client
	tg       *telegram.API
	handler  *handler.Handler

	httpSrv  *http.Server
	listener net.Listener

	pollCancel context.CancelFunc
	pollDone   chan struct{}
	inflight   sync.WaitGroup

	accepting         atomic.Bool
	modelReady        atomic.Bool
	registryReady     atomic.Bool
	listenerBound     atomic.Bool
	transportStarted  atomic.Bool
	webhookRegistered bool

	shutdownOnce sync.Once
}

// New constructs the controller in the Uninitialized state. Nothing is
// dialed until Start.
func New(cfg *config.Config, opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = logger.L
	}
	if opts.ModelFactory == nil {
		opts.ModelFactory = func(ctx context.Context, apiKey string) (gemini.Client, error) {
			return gemini.New(ctx, apiKey)
		}
	}
	if opts.TelegramBaseURL == "" {
		opts.TelegramBaseURL = telegram.DefaultBaseURL
	}

	a := &App{cfg: cfg, opts: opts, log: opts.Logger}
	a.fsm = newLifecycleFSM()
	return a
}

func newLifecycleFSM() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateUninitialized)
	fsm.Configure(StateUninitialized).
		Permit(triggerStart, StateStarting)
	fsm.Configure(StateStarting).
		Permit(triggerStarted, StateRunning).
		Permit(triggerFailed, StateFailed).
		Permit(triggerShutdown, StateShuttingDown)
	fsm.Configure(StateRunning).
		Permit(triggerShutdown, StateShuttingDown).
		Permit(triggerFailed, StateFailed)
	fsm.Configure(StateShuttingDown).
		Permit(triggerStopped, StateStopped).
		Ignore(triggerShutdown).
		Ignore(triggerFailed)
	fsm.Configure(StateStopped).
		Ignore(triggerShutdown)
	fsm.Configure(StateFailed).
		Ignore(triggerShutdown).
		Ignore(triggerStopped).
		Ignore(triggerFailed)
	return fsm
}

// State returns the current lifecycle state name.
func (a *App) State() string {
	if s, ok := a.fsm.MustState().(string); ok {
		return s
	}
	return fmt.Sprintf("%v", a.fsm.MustState())
}

func (a *App) fire(t lifecycleTrigger) {
	if err := a.fsm.Fire(t); err != nil {
		a.log.Warn("lifecycle transition rejected", "trigger", t, "state", a.State(), "error", err)
	}
}

// Start brings components up in dependency order: secrets, model client,
// session registry, transport intake, HTTP listener. Any failure aborts
// startup, leaves the controller Failed, and returns the error; no partial
// running state is exposed.
func (a *App) Start(ctx context.Context) error {
	a.fire(triggerStart)

	provider := a.opts.Secrets
	if provider == nil {
		mgr, err := secrets.NewManager(ctx, a.cfg.ProjectID)
		if err != nil {
			return a.failStartup(fmt.Errorf("secret manager: %w", err))
		}
		provider = secrets.Chain{secrets.Env{}, mgr}
	}

	botToken, err := provider.Resolve(ctx, config.SecretBotToken)
	if err != nil {
		return a.failStartup(err)
	}
	apiKey, err := provider.Resolve(ctx, config.SecretAPIKey)
	if err != nil {
		return a.failStartup(err)
	}

	a.model, err = a.opts.ModelFactory(ctx, apiKey)
	if err != nil {
		return a.failStartup(fmt.Errorf("model client init: %w", err))
	}
	a.modelReady.Store(true)

	a.registry = convo.NewRegistry(a.log)
	a.registryReady.Store(true)

	a.tg = telegram.NewAPI(a.opts.HTTPClient, a.opts.TelegramBaseURL, botToken)
	me, err := a.tg.GetMe(ctx)
	if err != nil {
		return a.failStartup(fmt.Errorf("telegram credential check: %w", err))
	}
	a.log.Info("telegram bot authenticated", "username", me.Username)

	a.handler = handler.New(a.registry, a.model, a.tg, a.log)

	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return a.failStartup(fmt.Errorf("bind %s: %w", a.cfg.Addr(), err))
	}
	a.listener = ln
	a.listenerBound.Store(true)
	a.httpSrv = &http.Server{Handler: httpapi.NewRouter(a, a.dispatchUpdate)}
	go func() {
		if err := a.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server terminated", "error", err)
		}
	}()

	switch a.cfg.Mode {
	case config.ModeWebhook:
		if a.cfg.PublicBaseURL != "" {
			url := a.cfg.PublicBaseURL + "/webhook"
			if err := a.tg.SetWebhook(ctx, url); err != nil {
				return a.failStartup(fmt.Errorf("register webhook: %w", err))
			}
			a.webhookRegistered = true
			a.log.Info("webhook registered", "url", url)
		} else {
			a.log.Warn("no public base url configured; webhook not registered")
		}
	default:
		pollCtx, cancel := context.WithCancel(context.Background())
		a.pollCancel = cancel
		a.pollDone = make(chan struct{})
		poller := telegram.NewPoller(a.tg, a.log)
		go func() {
			defer close(a.pollDone)
			poller.Run(pollCtx, a.dispatchUpdate)
		}()
	}

	a.transportStarted.Store(true)
	a.accepting.Store(true)
	a.fire(triggerStarted)
	a.log.Info("bot application initialized and running", "mode", a.cfg.Mode, "addr", ln.Addr().String())
	return nil
}

func (a *App) failStartup(err error) error {
	a.log.Error("startup failed", "error", err)
	// Best-effort teardown of whatever came up before the failure.
	if a.listener != nil {
		_ = a.listener.Close()
		a.listenerBound.Store(false)
	}
	if a.pollCancel != nil {
		a.pollCancel()
	}
	a.fire(triggerFailed)
	return err
}

// dispatchUpdate normalizes one raw update and hands it to the request
// handler on its own goroutine; events for different chats interleave freely.
func (a *App) dispatchUpdate(ctx context.Context, u telegram.Update) {
	if !a.accepting.Load() {
		return
	}
	ev, ok := telegram.Normalize(u)
	if !ok {
		a.log.Debug("dropping unusable update", "update_id", u.UpdateID)
		return
	}
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.handler.HandleEvent(context.WithoutCancel(ctx), ev)
	}()
}

// Shutdown tears down in reverse order: stop intake, drain in-flight
// exchanges, deregister the webhook, clear the registry, release the
// listener. Idempotent; teardown errors are logged and never block
// completion.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.fire(triggerShutdown)
		a.accepting.Store(false)

		if a.pollCancel != nil {
			a.pollCancel()
			select {
			case <-a.pollDone:
			case <-ctx.Done():
			}
		}

		drained := make(chan struct{})
		go func() {
			a.inflight.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(drainTimeout):
			a.log.Warn("shutdown proceeding with undrained exchanges")
		case <-ctx.Done():
		}

		if a.webhookRegistered {
			if err := a.tg.DeleteWebhook(ctx); err != nil {
				a.log.Error("failed to deregister webhook", "error", err)
			}
		}

		if a.registry != nil {
			a.registry.ClearAll()
		}

		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				a.log.Error("http server shutdown", "error", err)
			}
		}

		a.fire(triggerStopped)
		a.log.Info("bot application shut down")
	})
	return nil
}

// Run starts the service and blocks until ctx is canceled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Addr returns the bound listener address, for tests and diagnostics.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Health implements httpapi.StatusSource.
func (a *App) Health() httpapi.Status {
	return httpapi.Status{
		Status:           a.State(),
		TelegramAppReady: a.transportStarted.Load() && a.accepting.Load(),
		ModelReady:       a.modelReady.Load(),
		ConfigLoaded:     a.cfg != nil,
	}
}

// Ready implements httpapi.StatusSource: dependency initialization is
// complete and the service can correctly take a request.
func (a *App) Ready() bool {
	if a.fsm.MustState() != StateRunning {
		return false
	}
	if !a.modelReady.Load() || !a.registryReady.Load() {
		return false
	}
	if a.cfg.Mode == config.ModeWebhook && !a.listenerBound.Load() {
		return false
	}
	return true
}

// Accepting implements httpapi.StatusSource.
func (a *App) Accepting() bool {
	return a.accepting.Load()
}

// WebhookEnabled implements httpapi.StatusSource.
func (a *App) WebhookEnabled() bool {
	return a.cfg.Mode == config.ModeWebhook
}
