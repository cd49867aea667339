package aquos

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Logger is the structured logger used across the package.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// valueRange is an inclusive range of wire values.
type valueRange struct{ min, max int }

// domain is the set of values an operation accepts.
type domain []valueRange

func (d domain) contains(v int) bool {
	for _, r := range d {
		if v >= r.min && v <= r.max {
			return true
		}
	}
	return false
}

func (d domain) String() string {
	parts := make([]string, len(d))
	for i, r := range d {
		if r.min == r.max {
			parts[i] = strconv.Itoa(r.min)
		} else {
			parts[i] = fmt.Sprintf("%d-%d", r.min, r.max)
		}
	}
	return strings.Join(parts, ", ")
}

// Accepted values per operation, from the Aquos RS-232C manual.
var (
	powerDomain          = domain{{0, 1}}
	powerControlDomain   = domain{{0, 2}}
	avModeDomain         = domain{{0, 8}, {13, 17}, {100, 100}}
	volumeDomain         = domain{{0, 100}}
	viewModeDomain       = domain{{0, 11}}
	muteDomain           = domain{{0, 2}}
	surroundDomain       = domain{{0, 2}, {4, 7}}
	sleepDomain          = domain{{0, 4}}
	analogChannelDomain  = domain{{1, 135}}
	airMajorDomain       = domain{{1, 99}}
	airMinorDomain       = domain{{1, 99}}
	cableMajorDomain     = domain{{1, 999}}
	cableMinorDomain     = domain{{0, 999}}
	cableMajorOnlyDomain = domain{{1, 9999}}
)

// Info identifies the TV.
type Info struct {
	Name              string `json:"name"`
	Model             string `json:"model"`
	SoftwareVersion   string `json:"software_version"`
	IPProtocolVersion string `json:"ip_protocol_version"`
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Commands is the regional command table. Required.
	Commands *CommandTable

	// Transport is the open connection to the TV. Required.
	Transport Transport

	// Logger is optional.
	Logger Logger

	// PowerOnEnabled makes Update keep the TV accepting power-on over the
	// network (power_control 2). When false Update writes 0.
	PowerOnEnabled bool
}

// Client is the operation surface of one Aquos TV.
//
// Every operation is one or more synchronous exchanges. Queries send the
// "?" parameter and return the decoded value; setters return true for OK
// and false for ERR.
//
// Thread Safety: Client is NOT safe for concurrent use. Callers that share
// a Client must serialise access (the Bridge does this).
type Client struct {
	commands       *CommandTable
	transport      Transport
	logger         Logger
	powerOnEnabled bool

	state State
}

// NewClient creates a client over an open transport.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Commands == nil {
		return nil, errors.New("aquos: command table is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("aquos: transport is required")
	}
	if missing := opts.Commands.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: command map %s lacks %s",
			ErrUnknownCommand, opts.Commands.Region(), strings.Join(missing, ", "))
	}

	return &Client{
		commands:       opts.Commands,
		transport:      opts.Transport,
		logger:         opts.Logger,
		powerOnEnabled: opts.PowerOnEnabled,
	}, nil
}

// Commands returns the command table the client resolves against.
func (c *Client) Commands() *CommandTable {
	return c.commands
}

// Transport returns the underlying transport.
func (c *Client) Transport() Transport {
	return c.transport
}

// PowerOnEnabled reports whether the power-on policy is enabled.
func (c *Client) PowerOnEnabled() bool {
	return c.powerOnEnabled
}

// State returns a copy of the last committed state.
func (c *Client) State() State {
	return c.state
}

// Degrade forces the observed power state to off.
// The Retry Policy calls it when the attempt budget is exhausted.
func (c *Client) Degrade() {
	c.state.Power = PowerOff
	c.state.UpdatedAt = time.Now()
}

// exchange resolves path, sends it with parameter and decodes the reply.
func (c *Client) exchange(ctx context.Context, parameter string, path ...string) (Reply, error) {
	operation := strings.Join(path, ".")

	mnemonic, err := c.commands.Resolve(path...)
	if err != nil {
		return Reply{}, err
	}

	frame := Encode(mnemonic, parameter)
	c.logDebug("aquos send", "operation", operation, "frame", strings.TrimRight(string(frame), "\r\n"))

	raw, err := c.transport.Exchange(ctx, frame)
	if err != nil {
		return Reply{}, fmt.Errorf("%s: %w", operation, err)
	}

	reply := Decode(raw)
	c.logDebug("aquos receive", "operation", operation, "kind", reply.Kind.String(), "reply", reply.Text)
	return reply, nil
}

func (c *Client) queryInt(ctx context.Context, name string) (int, error) {
	reply, err := c.exchange(ctx, queryParam, name)
	if err != nil {
		return 0, err
	}
	return reply.Integer(name)
}

func (c *Client) queryText(ctx context.Context, name string) (string, error) {
	reply, err := c.exchange(ctx, queryParam, name)
	if err != nil {
		return "", err
	}
	if reply.Kind == ReplyNack {
		return "", &MalformedReplyError{Operation: name, Reply: reply, Want: "text"}
	}
	return reply.Text, nil
}

// send issues a command that answers OK or ERR.
func (c *Client) send(ctx context.Context, parameter string, path ...string) (bool, error) {
	reply, err := c.exchange(ctx, parameter, path...)
	if err != nil {
		return false, err
	}
	return reply.Acknowledged(strings.Join(path, "."))
}

func (c *Client) setInt(ctx context.Context, name string, d domain, value int) (bool, error) {
	if !d.contains(value) {
		return false, fmt.Errorf("%w: %s must be one of %s, got %d", ErrInvalidParameter, name, d, value)
	}
	return c.send(ctx, strconv.Itoa(value), name)
}

// Info queries the TV's name, model, software and IP protocol versions.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	fields := []struct {
		name string
		dst  *string
	}{
		{"name", &info.Name},
		{"model", &info.Model},
		{"version", &info.SoftwareVersion},
		{"ip_version", &info.IPProtocolVersion},
	}
	for _, f := range fields {
		v, err := c.queryText(ctx, f.name)
		if err != nil {
			return Info{}, err
		}
		*f.dst = v
	}
	return info, nil
}

// PowerOnCommandSettings returns whether the TV accepts power-on commands:
// PowerOnDisabled, PowerOnSerial or PowerOnNetwork.
func (c *Client) PowerOnCommandSettings(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "power_control")
}

// SetPowerOnCommandSettings changes the power-on acceptance setting.
func (c *Client) SetPowerOnCommandSettings(ctx context.Context, setting int) (bool, error) {
	return c.setInt(ctx, "power_control", powerControlDomain, setting)
}

// Power returns 0 (off) or 1 (on).
func (c *Client) Power(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "power")
}

// SetPower turns the TV off (0) or on (1).
func (c *Client) SetPower(ctx context.Context, value int) (bool, error) {
	return c.setInt(ctx, "power", powerDomain, value)
}

// Input returns the currently selected input.
// ok is false when the TV does not report an index that the command
// table knows (e.g. the TV answered ERR while in standby).
func (c *Client) Input(ctx context.Context) (in Input, ok bool, err error) {
	reply, err := c.exchange(ctx, "", "input_index")
	if err != nil {
		return Input{}, false, err
	}
	if reply.Kind != ReplyInteger {
		return Input{}, false, nil
	}
	in, ok = c.commands.InputByIndex(reply.Int)
	return in, ok, nil
}

// SetInput selects an input by table key ("hdmi_2"), display name
// ("HDMI_IN_2") or decimal index ("2"). It returns false without sending
// anything if no input matches.
func (c *Client) SetInput(ctx context.Context, selector string) (bool, error) {
	in, ok := c.lookupInput(selector)
	if !ok {
		c.logDebug("aquos input not found", "selector", selector)
		return false, nil
	}
	return c.selectInput(ctx, in)
}

// SetInputIndex selects the input registered under index.
func (c *Client) SetInputIndex(ctx context.Context, index int) (bool, error) {
	in, ok := c.commands.InputByIndex(index)
	if !ok {
		return false, nil
	}
	return c.selectInput(ctx, in)
}

func (c *Client) selectInput(ctx context.Context, in Input) (bool, error) {
	return c.send(ctx, "", categoryInput, in.Key, "command")
}

func (c *Client) lookupInput(selector string) (Input, bool) {
	for _, in := range c.commands.inputs {
		if strings.EqualFold(in.Key, selector) || strings.EqualFold(in.Name, selector) {
			return in, true
		}
	}
	if index, err := strconv.Atoi(selector); err == nil {
		return c.commands.InputByIndex(index)
	}
	return Input{}, false
}

// InputList returns the table's inputs ordered by index. No exchange.
func (c *Client) InputList() []Input {
	return c.commands.Inputs()
}

// AVMode returns the current A/V mode.
func (c *Client) AVMode(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "av_mode")
}

// SetAVMode sets the A/V mode: 0 toggle, 1 standard, 2 movie, 3 game,
// 4 user, 5 dynamic (fixed), 6 dynamic, 7 PC, 8 x.v.Color, 13 vintage movie,
// 14 standard 3D, 15 movie 3D, 16 game 3D, 17 movie THX, 100 auto.
func (c *Client) SetAVMode(ctx context.Context, mode int) (bool, error) {
	return c.setInt(ctx, "av_mode", avModeDomain, mode)
}

// Volume returns the wire volume, 0-100.
func (c *Client) Volume(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "volume")
}

// SetVolume sets the wire volume, 0-100.
func (c *Client) SetVolume(ctx context.Context, level int) (bool, error) {
	return c.setInt(ctx, "volume", volumeDomain, level)
}

// VolumeUp presses the remote's volume up key.
func (c *Client) VolumeUp(ctx context.Context) (bool, error) {
	return c.send(ctx, "", "volume_up")
}

// VolumeDown presses the remote's volume down key.
func (c *Client) VolumeDown(ctx context.Context) (bool, error) {
	return c.send(ctx, "", "volume_down")
}

// ViewMode returns the current view (wide) mode.
func (c *Client) ViewMode(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "view_mode")
}

// SetViewMode sets the view mode: 0 toggle, 1 side bar, 2 s.stretch, 3 zoom,
// 4 stretch, 5 normal (PC), 6 zoom (PC), 7 stretch (PC), 8 dot by dot,
// 9 full screen, 10 auto, 11 original.
func (c *Client) SetViewMode(ctx context.Context, mode int) (bool, error) {
	return c.setInt(ctx, "view_mode", viewModeDomain, mode)
}

// Mute returns the wire mute value: 1 muted, 2 not muted.
func (c *Client) Mute(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "mute")
}

// SetMute sends 0 (toggle), 1 (on) or 2 (off).
func (c *Client) SetMute(ctx context.Context, value int) (bool, error) {
	return c.setInt(ctx, "mute", muteDomain, value)
}

// Surround returns the current sound mode.
func (c *Client) Surround(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "sound_mode")
}

// SetSurround sets the sound mode: 0 toggle, 1 normal, 2 off, 4 3D hall,
// 5 3D movie, 6 3D standard, 7 3D stadium.
func (c *Client) SetSurround(ctx context.Context, mode int) (bool, error) {
	return c.setInt(ctx, "sound_mode", surroundDomain, mode)
}

// Sleep returns the minutes left on the sleep timer.
func (c *Client) Sleep(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "sleep")
}

// SetSleep sets the sleep timer: 0 off, then 1-4 for 30-120 minutes.
func (c *Client) SetSleep(ctx context.Context, setting int) (bool, error) {
	return c.setInt(ctx, "sleep", sleepDomain, setting)
}

// AnalogChannel returns the current analog channel.
func (c *Client) AnalogChannel(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "analog_channel")
}

// SetAnalogChannel tunes analog channel 1-135.
func (c *Client) SetAnalogChannel(ctx context.Context, channel int) (bool, error) {
	return c.setInt(ctx, "analog_channel", analogChannelDomain, channel)
}

// DigitalChannelAir returns the current digital air channel as reported
// by the TV (XXYY packed).
func (c *Client) DigitalChannelAir(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "digital_channel_air")
}

// SetDigitalChannelAir tunes air channel major.minor. A minor of 0 tunes
// the major channel alone.
func (c *Client) SetDigitalChannelAir(ctx context.Context, major, minor int) (bool, error) {
	if !airMajorDomain.contains(major) {
		return false, fmt.Errorf("%w: air major channel must be %s, got %d", ErrInvalidParameter, airMajorDomain, major)
	}
	if minor == 0 {
		return c.send(ctx, fmt.Sprintf("%04d", major), "digital_channel_air")
	}
	if !airMinorDomain.contains(minor) {
		return false, fmt.Errorf("%w: air minor channel must be %s, got %d", ErrInvalidParameter, airMinorDomain, minor)
	}
	return c.send(ctx, fmt.Sprintf("%02d%02d", major, minor), "digital_channel_air")
}

// DigitalChannelCable returns the current digital cable major channel.
func (c *Client) DigitalChannelCable(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "digital_channel_cable_major")
}

// SetDigitalChannelCable tunes cable channel major.minor.
//
// Maps with a separate minor-channel command send the major (3 digits)
// then the minor (3 digits); the result is the minor command's reply.
// Maps without one send the major alone as 4 digits and ignore minor.
func (c *Client) SetDigitalChannelCable(ctx context.Context, major, minor int) (bool, error) {
	if !c.commands.HasMinorChannelCommand() {
		if !cableMajorOnlyDomain.contains(major) {
			return false, fmt.Errorf("%w: cable channel must be %s, got %d", ErrInvalidParameter, cableMajorOnlyDomain, major)
		}
		return c.send(ctx, fmt.Sprintf("%04d", major), "digital_channel_cable_major")
	}

	if !cableMajorDomain.contains(major) {
		return false, fmt.Errorf("%w: cable major channel must be %s, got %d", ErrInvalidParameter, cableMajorDomain, major)
	}
	if !cableMinorDomain.contains(minor) {
		return false, fmt.Errorf("%w: cable minor channel must be %s, got %d", ErrInvalidParameter, cableMinorDomain, minor)
	}

	ok, err := c.send(ctx, fmt.Sprintf("%03d", major), "digital_channel_cable_major")
	if err != nil || !ok {
		return ok, err
	}
	return c.send(ctx, fmt.Sprintf("%03d", minor), "digital_channel_cable_minor")
}

// ChannelUp steps to the next channel.
func (c *Client) ChannelUp(ctx context.Context) (bool, error) {
	return c.send(ctx, "", "channel_up")
}

// ChannelDown steps to the previous channel.
func (c *Client) ChannelDown(ctx context.Context) (bool, error) {
	return c.send(ctx, "", "channel_down")
}

// PressRemoteButton presses a named remote key (see RemoteButtonList).
func (c *Client) PressRemoteButton(ctx context.Context, button string) (bool, error) {
	return c.send(ctx, "", categoryRemote, button)
}

// RemoteButtonList returns the remote keys this command map supports.
// No exchange.
func (c *Client) RemoteButtonList() []string {
	return c.commands.RemoteButtons()
}

// Update refreshes the observed state.
//
// It queries power, reasserts the power-on policy, then queries mute,
// input and volume. The input is applied only when the TV reports an
// index the table knows. ERR replies to the mute and volume queries are
// what a TV in standby sends and do not fail the cycle. Any other failure
// aborts the cycle and the previous state is kept; nothing is committed
// until every step succeeded.
func (c *Client) Update(ctx context.Context) error {
	next := c.state

	power, err := c.Power(ctx)
	if err != nil {
		return err
	}
	if power == powerOn {
		next.Power = PowerOn
	} else {
		next.Power = PowerOff
	}

	policy := PowerOnDisabled
	if c.powerOnEnabled {
		policy = PowerOnNetwork
	}
	if _, err := c.SetPowerOnCommandSettings(ctx, policy); err != nil {
		return err
	}

	muted, err := c.updateMute(ctx)
	if err != nil {
		return err
	}
	next.Muted = muted

	in, ok, err := c.Input(ctx)
	if err != nil {
		return err
	}
	if ok {
		next.Input = in
		next.InputKnown = true
	}

	volume, known, err := c.updateVolume(ctx)
	if err != nil {
		return err
	}
	next.Volume = float64(volume) / volumeScale
	next.VolumeKnown = known

	next.UpdatedAt = time.Now()
	c.state = next
	return nil
}

// updateMute reads mute for Update. Only wire value 2 is unmuted; an ERR
// reply (the TV answers ERR to status queries in standby) counts as muted.
func (c *Client) updateMute(ctx context.Context) (bool, error) {
	reply, err := c.exchange(ctx, queryParam, "mute")
	if err != nil {
		return false, err
	}
	switch reply.Kind {
	case ReplyInteger:
		return reply.Int != muteOff, nil
	case ReplyNack:
		return true, nil
	default:
		return false, &MalformedReplyError{Operation: "mute", Reply: reply, Want: "integer"}
	}
}

// updateVolume reads volume for Update. An ERR reply leaves the volume
// unknown at 0 instead of failing the cycle.
func (c *Client) updateVolume(ctx context.Context) (level int, known bool, err error) {
	reply, err := c.exchange(ctx, queryParam, "volume")
	if err != nil {
		return 0, false, err
	}
	switch reply.Kind {
	case ReplyInteger:
		return reply.Int, true, nil
	case ReplyNack:
		return 0, false, nil
	default:
		return 0, false, &MalformedReplyError{Operation: "volume", Reply: reply, Want: "integer"}
	}
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, keysAndValues...)
	}
}
