package aquos

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Feature is a bit set of media player capabilities.
type Feature uint32

// Media player features.
const (
	FeaturePause Feature = 1 << iota
	FeatureVolumeSet
	FeatureVolumeMute
	FeaturePreviousTrack
	FeatureNextTrack
	FeatureTurnOn
	FeatureTurnOff
	FeatureVolumeStep
	FeatureSelectSource
	FeaturePlay
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeaturePause, "pause"},
	{FeatureVolumeSet, "volume_set"},
	{FeatureVolumeMute, "volume_mute"},
	{FeaturePreviousTrack, "previous_track"},
	{FeatureNextTrack, "next_track"},
	{FeatureTurnOn, "turn_on"},
	{FeatureTurnOff, "turn_off"},
	{FeatureVolumeStep, "volume_step"},
	{FeatureSelectSource, "select_source"},
	{FeaturePlay, "play"},
}

// Has reports whether all bits of f are set.
func (fs Feature) Has(f Feature) bool {
	return fs&f == f
}

// Names lists the set features.
func (fs Feature) Names() []string {
	var names []string
	for _, fn := range featureNames {
		if fs.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	return names
}

// Remote keys used for the transport verbs.
const (
	buttonPlayPause = "enter"
	buttonPlay      = "play"
	buttonPause     = "pause"
	buttonNext      = "skip_forward"
	buttonPrevious  = "skip_back"
)

// volumeStep is how far VolumeUp and VolumeDown move, in wire units.
const volumeStep = 2

// Outcome is the result of a Player verb.
type Outcome int

const (
	// OutcomeAccepted means the TV answered OK (or the verb needed no answer).
	OutcomeAccepted Outcome = iota

	// OutcomeRejected means the TV answered ERR.
	OutcomeRejected

	// OutcomeUnreachable means the retry budget was spent; the observed
	// state has been degraded to off.
	OutcomeUnreachable

	// OutcomeInvalid means the request can never succeed: an unknown
	// command, source or out-of-range value.
	OutcomeInvalid

	// OutcomeSkipped means nothing was sent (e.g. volume not yet known).
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// OK reports whether the verb took effect.
func (o Outcome) OK() bool {
	return o == OutcomeAccepted
}

func outcomeOf(err error) Outcome {
	if isConfigurationError(err) {
		return OutcomeInvalid
	}
	return OutcomeUnreachable
}

// PlayerOptions configures a Player.
type PlayerOptions struct {
	// Client is required.
	Client *Client

	// Retry is the attempt budget applied to every operation.
	Retry RetryPolicy

	// Logger is optional.
	Logger Logger
}

// Player exposes a Client through media player verbs.
//
// Every verb runs under the retry policy and reports an Outcome instead of
// an error; failures are logged, and a spent budget degrades the observed
// state to off. Callers watch State rather than handling errors.
//
// Thread Safety: Player is NOT safe for concurrent use.
type Player struct {
	client  *Client
	policy  RetryPolicy
	logger  Logger
	lastErr error
}

// NewPlayer wraps a client.
func NewPlayer(opts PlayerOptions) (*Player, error) {
	if opts.Client == nil {
		return nil, errors.New("aquos: client is required")
	}
	policy := opts.Retry
	if policy.Logger == nil {
		policy.Logger = opts.Logger
	}
	return &Player{
		client: opts.Client,
		policy: policy,
		logger: opts.Logger,
	}, nil
}

// Client returns the wrapped client.
func (p *Player) Client() *Client {
	return p.client
}

// State returns the last observed state.
func (p *Player) State() State {
	return p.client.State()
}

// Err returns the error of the last operation run under the retry policy,
// or nil if it succeeded. Verbs that send nothing leave it unchanged.
func (p *Player) Err() error {
	return p.lastErr
}

// SupportedFeatures returns the capabilities of this TV. Turning on is
// only offered when the power-on policy is enabled.
func (p *Player) SupportedFeatures() Feature {
	fs := FeatureTurnOff | FeatureNextTrack | FeaturePause | FeaturePreviousTrack |
		FeatureSelectSource | FeatureVolumeMute | FeatureVolumeStep | FeatureVolumeSet |
		FeaturePlay
	if p.client.PowerOnEnabled() {
		fs |= FeatureTurnOn
	}
	return fs
}

// SourceList returns input display names ordered by index.
func (p *Player) SourceList() []string {
	inputs := p.client.InputList()
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	return names
}

// Update refreshes the observed state.
func (p *Player) Update(ctx context.Context) Outcome {
	return p.do(ctx, "update", p.client.Update)
}

// TurnOn powers the TV on.
func (p *Player) TurnOn(ctx context.Context) Outcome {
	return p.set(ctx, "turn_on", func(ctx context.Context) (bool, error) {
		return p.client.SetPower(ctx, 1)
	})
}

// TurnOff powers the TV off.
func (p *Player) TurnOff(ctx context.Context) Outcome {
	return p.set(ctx, "turn_off", func(ctx context.Context) (bool, error) {
		return p.client.SetPower(ctx, 0)
	})
}

// VolumeUp raises the volume by two steps. It does nothing while the
// volume has not been read yet.
func (p *Player) VolumeUp(ctx context.Context) Outcome {
	return p.stepVolume(ctx, "volume_up", volumeStep)
}

// VolumeDown lowers the volume by two steps.
func (p *Player) VolumeDown(ctx context.Context) Outcome {
	return p.stepVolume(ctx, "volume_down", -volumeStep)
}

func (p *Player) stepVolume(ctx context.Context, verb string, delta int) Outcome {
	state := p.client.State()
	if !state.VolumeKnown {
		p.logDebug("unknown volume, ignoring step", "verb", verb)
		return OutcomeSkipped
	}
	level := clampVolume(state.WireVolume() + delta)
	return p.set(ctx, verb, func(ctx context.Context) (bool, error) {
		return p.client.SetVolume(ctx, level)
	})
}

// SetVolumeLevel sets the volume from a fraction where 1.0 is wire level 60.
func (p *Player) SetVolumeLevel(ctx context.Context, fraction float64) Outcome {
	level := clampVolume(int(fraction * volumeScale))
	return p.set(ctx, "set_volume", func(ctx context.Context) (bool, error) {
		return p.client.SetVolume(ctx, level)
	})
}

func clampVolume(level int) int {
	return max(0, min(100, level))
}

// MuteVolume toggles mute. The TV has no reliable absolute mute over
// the serial link, so the requested value is ignored.
func (p *Player) MuteVolume(ctx context.Context) Outcome {
	return p.set(ctx, "mute", func(ctx context.Context) (bool, error) {
		return p.client.SetMute(ctx, 0)
	})
}

// MediaPlayPause presses enter, which toggles playback on most sources.
func (p *Player) MediaPlayPause(ctx context.Context) Outcome {
	return p.press(ctx, buttonPlayPause)
}

// MediaPlay presses play.
func (p *Player) MediaPlay(ctx context.Context) Outcome {
	return p.press(ctx, buttonPlay)
}

// MediaPause presses the dedicated pause key (RCKY18 in the shipped
// tables), not play. Sets that only toggle on play can use MediaPlay or
// MediaPlayPause instead.
func (p *Player) MediaPause(ctx context.Context) Outcome {
	return p.press(ctx, buttonPause)
}

// MediaNextTrack presses skip forward.
func (p *Player) MediaNextTrack(ctx context.Context) Outcome {
	return p.press(ctx, buttonNext)
}

// MediaPreviousTrack presses skip back.
func (p *Player) MediaPreviousTrack(ctx context.Context) Outcome {
	return p.press(ctx, buttonPrevious)
}

// PressRemoteButton presses any named remote key.
func (p *Player) PressRemoteButton(ctx context.Context, button string) Outcome {
	return p.press(ctx, button)
}

func (p *Player) press(ctx context.Context, button string) Outcome {
	return p.set(ctx, "remote_button", func(ctx context.Context) (bool, error) {
		return p.client.PressRemoteButton(ctx, button)
	})
}

// SelectSource selects the input with the given display name.
// Unknown names send nothing and report OutcomeInvalid.
func (p *Player) SelectSource(ctx context.Context, source string) Outcome {
	for _, in := range p.client.InputList() {
		if strings.EqualFold(in.Name, source) {
			return p.set(ctx, "select_source", func(ctx context.Context) (bool, error) {
				return p.client.SetInputIndex(ctx, in.Index)
			})
		}
	}
	p.logDebug("unknown source", "source", source)
	return OutcomeInvalid
}

// Info queries the TV identification under the retry policy.
func (p *Player) Info(ctx context.Context) (Info, Outcome) {
	info, err := Retry(ctx, p.policy, p.client, p.client.Info)
	p.lastErr = err
	if err != nil {
		p.logFailure("info", err)
		return Info{}, outcomeOf(err)
	}
	return info, OutcomeAccepted
}

func (p *Player) set(ctx context.Context, verb string, op func(context.Context) (bool, error)) Outcome {
	ok, err := Retry(ctx, p.policy, p.client, op)
	p.lastErr = err
	if err != nil {
		p.logFailure(verb, err)
		return outcomeOf(err)
	}
	if !ok {
		p.logDebug("tv rejected command", "verb", verb)
		return OutcomeRejected
	}
	return OutcomeAccepted
}

func (p *Player) do(ctx context.Context, verb string, op func(context.Context) error) Outcome {
	err := RetryDo(ctx, p.policy, p.client, op)
	p.lastErr = err
	if err != nil {
		p.logFailure(verb, err)
		return outcomeOf(err)
	}
	return OutcomeAccepted
}

func (p *Player) logFailure(verb string, err error) {
	if p.logger == nil {
		return
	}
	if errors.Is(err, ErrDegraded) {
		p.logger.Warn("aquos tv unreachable, state set to off", "verb", verb, "error", err)
		return
	}
	p.logger.Error("aquos operation failed", "verb", verb, "error", err)
}

func (p *Player) logDebug(msg string, keysAndValues ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, keysAndValues...)
	}
}
