package aquos

import (
	"context"
	"errors"
	"slices"
	"testing"
)

// updatedPlayer returns a player whose state has been read once:
// on, not muted, HDMI_IN_3, wire volume 30.
func updatedPlayer(t *testing.T, powerOnEnabled bool) (*Player, *MockTransport) {
	t.Helper()

	player, tr := newTestPlayer(t, powerOnEnabled)
	tr.replyUpdate("1", "2", "3", "30")
	if got := player.Update(context.Background()); got != OutcomeAccepted {
		t.Fatalf("Update() = %v, want accepted", got)
	}
	tr.ClearFrames()
	return player, tr
}

func TestPlayer_VolumeStep(t *testing.T) {
	tests := []struct {
		name  string
		verb  func(*Player) Outcome
		frame string
	}{
		{"up", func(p *Player) Outcome { return p.VolumeUp(context.Background()) }, "VOLM32"},
		{"down", func(p *Player) Outcome { return p.VolumeDown(context.Background()) }, "VOLM28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player, tr := updatedPlayer(t, false)
			tr.Reply(tt.frame, "OK")

			if got := tt.verb(player); got != OutcomeAccepted {
				t.Errorf("outcome = %v, want accepted", got)
			}
			if got := tr.Frames(); !slices.Equal(got, []string{tt.frame}) {
				t.Errorf("frames = %v, want [%s]", got, tt.frame)
			}
		})
	}
}

func TestPlayer_VolumeStepClamped(t *testing.T) {
	player, tr := newTestPlayer(t, false)
	tr.replyUpdate("1", "2", "3", "100")
	player.Update(context.Background())
	tr.ClearFrames()
	tr.Reply("VOLM100", "OK")

	if got := player.VolumeUp(context.Background()); got != OutcomeAccepted {
		t.Errorf("VolumeUp() = %v", got)
	}
	if got := tr.Frames(); !slices.Equal(got, []string{"VOLM100"}) {
		t.Errorf("frames = %v, want [VOLM100]", got)
	}
}

func TestPlayer_VolumeStepUnknownVolume(t *testing.T) {
	player, tr := newTestPlayer(t, false)

	if got := player.VolumeUp(context.Background()); got != OutcomeSkipped {
		t.Errorf("VolumeUp() = %v, want skipped", got)
	}
	if len(tr.Frames()) != 0 {
		t.Errorf("frames = %v, want none", tr.Frames())
	}
}

func TestPlayer_SetVolumeLevel(t *testing.T) {
	tests := []struct {
		fraction float64
		frame    string
	}{
		{0.5, "VOLM30"},
		{0.999, "VOLM59"},
		{1.0, "VOLM60"},
		{0, "VOLM0"},
		{2.0, "VOLM100"},
	}

	for _, tt := range tests {
		player, tr := newTestPlayer(t, false)
		tr.Reply(tt.frame, "OK")

		if got := player.SetVolumeLevel(context.Background(), tt.fraction); got != OutcomeAccepted {
			t.Errorf("SetVolumeLevel(%v) = %v", tt.fraction, got)
		}
		if got := tr.Frames(); !slices.Equal(got, []string{tt.frame}) {
			t.Errorf("SetVolumeLevel(%v) frames = %v, want [%s]", tt.fraction, got, tt.frame)
		}
	}
}

func TestPlayer_MediaKeys(t *testing.T) {
	tests := []struct {
		name  string
		verb  func(*Player) Outcome
		frame string
	}{
		{"play pause", func(p *Player) Outcome { return p.MediaPlayPause(context.Background()) }, "RCKY40"},
		{"play", func(p *Player) Outcome { return p.MediaPlay(context.Background()) }, "RCKY16"},
		{"pause", func(p *Player) Outcome { return p.MediaPause(context.Background()) }, "RCKY18"},
		{"next", func(p *Player) Outcome { return p.MediaNextTrack(context.Background()) }, "RCKY21"},
		{"previous", func(p *Player) Outcome { return p.MediaPreviousTrack(context.Background()) }, "RCKY19"},
		{"mute toggles", func(p *Player) Outcome { return p.MuteVolume(context.Background()) }, "MUTE0"},
		{"turn on", func(p *Player) Outcome { return p.TurnOn(context.Background()) }, "POWR1"},
		{"turn off", func(p *Player) Outcome { return p.TurnOff(context.Background()) }, "POWR0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player, tr := newTestPlayer(t, true)
			tr.Reply(tt.frame, "OK")

			if got := tt.verb(player); got != OutcomeAccepted {
				t.Errorf("outcome = %v, want accepted", got)
			}
			if got := tr.Frames(); !slices.Equal(got, []string{tt.frame}) {
				t.Errorf("frames = %v, want [%s]", got, tt.frame)
			}
		})
	}
}

func TestPlayer_Rejected(t *testing.T) {
	player, tr := newTestPlayer(t, false)
	tr.Reply("POWR1", "ERR")

	if got := player.TurnOn(context.Background()); got != OutcomeRejected {
		t.Errorf("TurnOn() = %v, want rejected", got)
	}
	if len(tr.Frames()) != 1 {
		t.Errorf("ERR retried: frames = %v", tr.Frames())
	}
}

func TestPlayer_UnreachableDegrades(t *testing.T) {
	player, tr := updatedPlayer(t, false)

	// TurnOff has no reply queued and times out.
	if got := player.TurnOff(context.Background()); got != OutcomeUnreachable {
		t.Errorf("TurnOff() = %v, want unreachable", got)
	}
	if n := len(tr.Frames()); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	if player.State().Power != PowerOff {
		t.Errorf("Power = %v, want off", player.State().Power)
	}
	if err := player.Err(); !errors.Is(err, ErrTimeout) || !errors.Is(err, ErrDegraded) {
		t.Errorf("Err() = %v, want degraded timeout", err)
	}

	tr.Reply("POWR0", "OK")
	player.TurnOff(context.Background())
	if err := player.Err(); err != nil {
		t.Errorf("Err() after success = %v, want nil", err)
	}
}

func TestPlayer_UpdateFailureDegrades(t *testing.T) {
	player, tr := updatedPlayer(t, false)
	tr.Fail(ErrNotConnected)

	if got := player.Update(context.Background()); got != OutcomeUnreachable {
		t.Errorf("Update() = %v, want unreachable", got)
	}
	if player.State().Power != PowerOff {
		t.Errorf("Power = %v, want off", player.State().Power)
	}
}

func TestPlayer_UpdateStandby(t *testing.T) {
	player, tr := newTestPlayer(t, true)
	tr.replyUpdate("0", "ERR", "ERR", "ERR")

	if got := player.Update(context.Background()); got != OutcomeAccepted {
		t.Fatalf("Update() = %v, want accepted", got)
	}
	if n := len(tr.Frames()); n != 5 {
		t.Errorf("sent %d frames %v, want one cycle of 5", n, tr.Frames())
	}
	state := player.State()
	if state.Power != PowerOff || !state.Muted || state.VolumeKnown {
		t.Errorf("state = %+v, want off, muted, volume unknown", state)
	}
}

func TestPlayer_UnknownButtonInvalid(t *testing.T) {
	player, tr := newTestPlayer(t, false)

	if got := player.PressRemoteButton(context.Background(), "teleport"); got != OutcomeInvalid {
		t.Errorf("PressRemoteButton() = %v, want invalid", got)
	}
	if len(tr.Frames()) != 0 || player.State().Power == PowerOff {
		t.Error("invalid button must not send or degrade")
	}
}

func TestPlayer_SelectSource(t *testing.T) {
	player, tr := newTestPlayer(t, false)
	tr.Reply("IAVD2", "OK")

	if got := player.SelectSource(context.Background(), "HDMI_IN_2"); got != OutcomeAccepted {
		t.Errorf("SelectSource(HDMI_IN_2) = %v", got)
	}
	if got := player.SelectSource(context.Background(), "Betamax"); got != OutcomeInvalid {
		t.Errorf("SelectSource(Betamax) = %v, want invalid", got)
	}
	if got := tr.Frames(); !slices.Equal(got, []string{"IAVD2"}) {
		t.Errorf("frames = %v", got)
	}
}

func TestPlayer_SupportedFeatures(t *testing.T) {
	off, _ := newTestPlayer(t, false)
	on, _ := newTestPlayer(t, true)

	if off.SupportedFeatures().Has(FeatureTurnOn) {
		t.Error("TurnOn offered without power-on policy")
	}
	if !on.SupportedFeatures().Has(FeatureTurnOn) {
		t.Error("TurnOn missing with power-on policy")
	}

	base := FeaturePause | FeatureVolumeSet | FeatureVolumeMute | FeaturePreviousTrack |
		FeatureNextTrack | FeatureTurnOff | FeatureVolumeStep | FeatureSelectSource | FeaturePlay
	if !off.SupportedFeatures().Has(base) {
		t.Errorf("features = %v", off.SupportedFeatures().Names())
	}
	if names := on.SupportedFeatures().Names(); !slices.Contains(names, "turn_on") || len(names) != 10 {
		t.Errorf("Names() = %v", names)
	}
}

func TestPlayer_SourceList(t *testing.T) {
	player, tr := newTestPlayer(t, false)

	sources := player.SourceList()
	if len(sources) != 9 || sources[0] != "TV / Antenna" || sources[2] != "HDMI_IN_2" {
		t.Errorf("SourceList() = %v", sources)
	}
	if len(tr.Frames()) != 0 {
		t.Error("SourceList() must not exchange")
	}
}

func TestPlayer_Info(t *testing.T) {
	player, tr := newTestPlayer(t, false)
	tr.Reply("TVNM1?", "Den")
	tr.Reply("MNRD1?", "LC-70")
	tr.Reply("SWVN1?", "1")
	tr.Reply("IPPV1?", "2")

	info, outcome := player.Info(context.Background())
	if outcome != OutcomeAccepted || info.Model != "LC-70" {
		t.Errorf("Info() = %+v, %v", info, outcome)
	}
}

func TestOutcome_String(t *testing.T) {
	for o, want := range map[Outcome]string{
		OutcomeAccepted:    "accepted",
		OutcomeRejected:    "rejected",
		OutcomeUnreachable: "unreachable",
		OutcomeInvalid:     "invalid",
		OutcomeSkipped:     "skipped",
		Outcome(42):        "Outcome(42)",
	} {
		if got := o.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(o), got, want)
		}
	}
	if !OutcomeAccepted.OK() || OutcomeRejected.OK() {
		t.Error("OK() mismatch")
	}
}
