package lifecycle

import "context"

// Region names one toggleable area of the chat page.
type Region string

// Page regions. The values match the element ids of the embedded page.
const (
	RegionStartControl Region = "start-chat-button"
	RegionWelcome      Region = "welcome-container"
	RegionChatWrapper  Region = "chat-wrapper"
	RegionChatSurface  Region = "n8n-chat-container"
	RegionEndSession   Region = "end-session-button"
	RegionThankYou     Region = "thank-you-container"
)

// Surface is the page the controller manipulates.
type Surface interface {
	// SetVisible toggles the visibility flag of a region.
	SetVisible(region Region, visible bool) error
	// DisableInput locks the chat input and send controls so no further
	// message can be submitted.
	DisableInput(placeholder string) error
	// ShowError replaces the chat surface content with a message.
	ShowError(message string) error
}

// MountConfig is what the chat widget needs to render into the page.
type MountConfig struct {
	WebhookURL      string                       `json:"webhookUrl"`
	Target          string                       `json:"target"`
	Mode            string                       `json:"mode"`
	InitialMessages []string                     `json:"initialMessages"`
	I18n            map[string]map[string]string `json:"i18n,omitempty"`
}

// Widget mounts the third-party chat widget into the page.
type Widget interface {
	Mount(ctx context.Context, cfg MountConfig) error
}

// MutationSource reports structural changes of the chat render surface.
type MutationSource interface {
	// Observe registers fn to be called once per mutation batch anywhere in
	// the surface subtree. The returned function unsubscribes.
	Observe(fn func()) (stop func())
	// Images returns the address of every image currently under the surface.
	Images() []string
}

// Recorder is notified of lifecycle events, typically for persistence.
type Recorder interface {
	OnPhase(from, to Phase)
	OnMountFailure(err error)
}

type nopRecorder struct{}

func (nopRecorder) OnPhase(Phase, Phase)  {}
func (nopRecorder) OnMountFailure(error) {}
