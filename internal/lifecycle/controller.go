package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Default texts shown by the controller.
const (
	DefaultCompletedPlaceholder = "✅ Fim da jornada! Clique em Encerrar para concluir. ✅"
	DefaultMountErrorMessage    = "Não foi possível carregar o chat. Tente atualizar a página."
)

// Config holds controller settings.
type Config struct {
	Mount                MountConfig
	Marker               Marker
	CompletedPlaceholder string
	MountErrorMessage    string
	Logger               *slog.Logger
	Recorder             Recorder
}

// Controller owns the state of one chat page: the current phase and the
// completion detector. All state changes run on the loop started by Run.
type Controller struct {
	surface Surface
	widget  Widget
	source  MutationSource
	cfg     Config
	log     *slog.Logger
	rec     Recorder

	events chan func()
	done   chan struct{}
	ctx    context.Context

	mu    sync.RWMutex
	phase Phase

	detector    *Detector
	mountCancel context.CancelFunc
}

// NewController creates a controller in PhaseWelcome.
func NewController(surface Surface, widget Widget, source MutationSource, cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.CompletedPlaceholder == "" {
		cfg.CompletedPlaceholder = DefaultCompletedPlaceholder
	}
	if cfg.MountErrorMessage == "" {
		cfg.MountErrorMessage = DefaultMountErrorMessage
	}
	if cfg.Mount.Target == "" {
		cfg.Mount.Target = "#" + string(RegionChatSurface)
	}
	return &Controller{
		surface: surface,
		widget:  widget,
		source:  source,
		cfg:     cfg,
		log:     cfg.Logger,
		rec:     cfg.Recorder,
		events:  make(chan func(), 64),
		done:    make(chan struct{}),
		ctx:     context.Background(),
		phase:   PhaseWelcome,
	}
}

// Phase returns the current phase. Safe to call from any goroutine.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// InputWritable reports whether the chat input accepts messages.
func (c *Controller) InputWritable() bool {
	return c.Phase() == PhaseActive
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run processes posted work until ctx is canceled. The detector and any
// pending mount are torn down on exit.
func (c *Controller) Run(ctx context.Context) {
	c.ctx = ctx
	defer close(c.done)
	defer c.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.events:
			fn()
		}
	}
}

// Post schedules fn on the controller loop.
func (c *Controller) Post(fn func()) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.events <- fn:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// Start requests the welcome -> active transition.
func (c *Controller) Start() error {
	return c.Post(func() {
		if err := c.start(); err != nil {
			c.log.Warn("Start ignored", "phase", c.Phase().String(), "error", err)
		}
	})
}

// End requests the completed -> closed transition.
func (c *Controller) End() error {
	return c.Post(func() {
		if err := c.end(); err != nil {
			c.log.Warn("End ignored", "phase", c.Phase().String(), "error", err)
		}
	})
}

func (c *Controller) setPhase(to Phase) {
	c.mu.Lock()
	from := c.phase
	c.phase = to
	c.mu.Unlock()

	c.log.Info("Session phase changed", "from", from.String(), "to", to.String())
	c.rec.OnPhase(from, to)
}

func (c *Controller) show(region Region, visible bool) {
	if err := c.surface.SetVisible(region, visible); err != nil {
		c.log.Warn("Failed to toggle region", "region", string(region), "visible", visible, "error", err)
	}
}

func (c *Controller) start() error {
	if c.Phase() != PhaseWelcome {
		return fmt.Errorf("start from %s: %w", c.Phase(), ErrInvalidTransition)
	}
	c.setPhase(PhaseActive)
	c.show(RegionWelcome, false)
	c.show(RegionChatWrapper, true)

	mountCtx, cancel := context.WithCancel(c.ctx)
	c.mountCancel = cancel
	go func() {
		err := c.mount(mountCtx)
		if postErr := c.Post(func() { c.mounted(err) }); postErr != nil {
			c.log.Debug("Mount finished after controller stopped", "error", err)
		}
	}()
	return nil
}

func (c *Controller) mount(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("widget mount panicked: %v", r)
		}
	}()
	return c.widget.Mount(ctx, c.cfg.Mount)
}

func (c *Controller) mounted(err error) {
	if c.mountCancel != nil {
		c.mountCancel()
		c.mountCancel = nil
	}
	if c.Phase() != PhaseActive {
		return
	}
	if err != nil {
		c.log.Error("Failed to mount chat widget", "error", err)
		c.rec.OnMountFailure(err)
		if showErr := c.surface.ShowError(c.cfg.MountErrorMessage); showErr != nil {
			c.log.Warn("Failed to show mount error", "error", showErr)
		}
		return
	}
	if c.detector != nil {
		c.log.Warn("Completion detector already armed for this session")
		return
	}

	c.detector = NewDetector(c.cfg.Marker, c.completed)
	if err := c.detector.Arm(c.source); err != nil {
		c.log.Error("Failed to arm completion detector", "error", err)
		return
	}
	c.log.Info("Chat widget mounted, watching for completion", "marker", c.cfg.Marker.Substring)
}

func (c *Controller) completed(src string) {
	if c.Phase() != PhaseActive {
		return
	}
	c.log.Info("Completion image detected", "src", src)
	c.setPhase(PhaseCompleted)
	c.show(RegionEndSession, true)
	if err := c.surface.DisableInput(c.cfg.CompletedPlaceholder); err != nil {
		c.log.Warn("Failed to disable chat input", "error", err)
	}
}

func (c *Controller) end() error {
	if c.Phase() != PhaseCompleted {
		return fmt.Errorf("end from %s: %w", c.Phase(), ErrInvalidTransition)
	}
	c.setPhase(PhaseClosed)
	c.show(RegionChatWrapper, false)
	c.show(RegionThankYou, true)
	if c.detector != nil {
		c.detector.Disarm()
	}
	return nil
}

func (c *Controller) teardown() {
	if c.mountCancel != nil {
		c.mountCancel()
		c.mountCancel = nil
	}
	if c.detector != nil {
		c.detector.Disarm()
	}
}
