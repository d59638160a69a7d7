package openisl

import (
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/esimstech/openisl-go/internal/capture"
	"github.com/esimstech/openisl-go/internal/channel"
	"github.com/esimstech/openisl-go/internal/config"
	"github.com/esimstech/openisl-go/internal/constants"
	"github.com/esimstech/openisl-go/internal/logging"
	"github.com/esimstech/openisl-go/internal/registry"
	"github.com/esimstech/openisl-go/internal/ring"
	"github.com/esimstech/openisl-go/internal/stopbus"
	"github.com/esimstech/openisl-go/internal/wire"
)

// State is the connector's 3-bit lifecycle mask.
type State int

const (
	StateEntry     State = 0
	StateChecked   State = 1
	StateCreated   State = 3
	StateConnected State = 7
)

func (s State) String() string {
	switch s {
	case StateEntry:
		return "Entry"
	case StateChecked:
		return "Checked"
	case StateCreated:
		return "Created"
	case StateConnected:
		return "Connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StopMode selects what a connector does when it observes a stop signal.
type StopMode int

const (
	StopModeStop StopMode = iota
	StopModeExit
)

// registrySingleton lazily opens the process-wide RegistryShm segment; every
// Connector in this process shares the same mapping.
var (
	registryOnce sync.Once
	registryShm  *registry.RegistryShm
	registryErr  error
)

func sharedRegistryShm(maxStr, capacity int) (*registry.RegistryShm, error) {
	registryOnce.Do(func() {
		registryShm, registryErr = registry.OpenRegistryShm(maxStr, capacity)
	})
	return registryShm, registryErr
}

// Connector is a simulator's bus endpoint: configuration, an I/O catalog,
// and the runtime state needed to create/connect/disconnect its channels.
type Connector struct {
	name      string
	id        string
	uid       uint32
	typeTag   string
	pid       int
	file      string
	sessionID string
	timeout   float64

	startTime     float64
	endTime       float64
	stepSize      float64
	stepTolerance float64

	ios     []*IoVar
	allIOs  map[string]*IoVar
	inputs  map[string]*IoVar
	outputs map[string]*IoVar

	channels map[string]*channel.Channel

	connectorShm *registry.ConnectorShm
	registrySlot int // -1 if not registered

	stopMode StopMode
	viewer   bool

	terminated atomic.Bool
	state      State

	timerStart time.Time
	elapsed    time.Duration

	listener       *stopbus.Listener
	globalListener *stopbus.Listener

	maxStr       int
	maxFifoDepth int
	maxReaders   int
	maxRunSims   int

	observer Observer
	recorder *capture.Recorder
}

// NewConnector constructs a connector in Entry state: fresh UUID, default
// type "ISL", default simulation window (start 0, end 10, step 1).
func NewConnector(name string) *Connector {
	return &Connector{
		name:          name,
		id:            uuid.New().String(),
		typeTag:       "ISL",
		pid:           os.Getpid(),
		startTime:     0,
		endTime:       10,
		stepSize:      1,
		stepTolerance: constants.DefaultStepTolerance,
		allIOs:        make(map[string]*IoVar),
		inputs:        make(map[string]*IoVar),
		outputs:       make(map[string]*IoVar),
		channels:      make(map[string]*channel.Channel),
		registrySlot:  -1,
		maxStr:        constants.MaxSHMString,
		maxFifoDepth:  constants.MaxFIFODepth,
		maxReaders:    constants.MaxNbReaders,
		maxRunSims:    constants.MaxRunSims,
		observer:      NoOpObserver{},
	}
}

func (c *Connector) uidHash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(c.id))
	return h.Sum32()
}

func typeTagToUint32(s string) uint32 {
	var b [4]byte
	copy(b[:], s)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Accessors. Config fields are read-only from outside except through the
// Set* methods below, which enforce the "mutable only in Entry/Checked"
// rule (P9).

func (c *Connector) Name() string           { return c.name }
func (c *Connector) ID() string             { return c.id }
func (c *Connector) UID() uint32            { return c.uid }
func (c *Connector) TypeTag() string        { return c.typeTag }
func (c *Connector) PID() int               { return c.pid }
func (c *Connector) File() string           { return c.file }
func (c *Connector) SessionID() string      { return c.sessionID }
func (c *Connector) Timeout() float64       { return c.timeout }
func (c *Connector) StartTime() float64     { return c.startTime }
func (c *Connector) EndTime() float64       { return c.endTime }
func (c *Connector) StepSize() float64      { return c.stepSize }
func (c *Connector) StepTolerance() float64 { return c.stepTolerance }
func (c *Connector) State() State           { return c.state }
func (c *Connector) IsViewer() bool         { return c.viewer }
func (c *Connector) StopMode() StopMode     { return c.stopMode }

// SetObserver installs a metrics observer invoked by every Set/Get/GetAt
// this connector performs through its channels.
func (c *Connector) SetObserver(o Observer) {
	if o == nil {
		o = NoOpObserver{}
	}
	c.observer = o
}

func (c *Connector) mutableConfig(op string) error {
	if c.state == StateCreated || c.state == StateConnected {
		return NewError(op, KindConfigValidation, "connector %q: config is frozen in state %s", c.name, c.state)
	}
	return nil
}

func (c *Connector) SetSessionID(session string) error {
	if err := c.mutableConfig("set_session_id"); err != nil {
		return err
	}
	c.sessionID = session
	return nil
}

func (c *Connector) SetTimeout(seconds float64) error {
	if err := c.mutableConfig("set_timeout"); err != nil {
		return err
	}
	c.timeout = seconds
	return nil
}

func (c *Connector) SetTimes(start, end, step float64) error {
	if err := c.mutableConfig("set_times"); err != nil {
		return err
	}
	c.startTime, c.endTime, c.stepSize = start, end, step
	return nil
}

func (c *Connector) SetStepTolerance(tol float64) error {
	if err := c.mutableConfig("set_step_tolerance"); err != nil {
		return err
	}
	c.stepTolerance = tol
	return nil
}

func (c *Connector) SetViewer(v bool) error {
	if err := c.mutableConfig("set_viewer"); err != nil {
		return err
	}
	c.viewer = v
	if v && c.recorder == nil {
		c.recorder = capture.NewRecorder(c.maxFifoDepth)
	}
	return nil
}

// History returns the last n samples this viewer connector has observed
// for ioID (oldest first), or nil if the connector isn't in viewer mode.
func (c *Connector) History(ioID string, n int) []capture.Sample {
	if c.recorder == nil {
		return nil
	}
	return c.recorder.History(ioID, n)
}

func (c *Connector) SetStopMode(m StopMode) error {
	if err := c.mutableConfig("set_stop_mode"); err != nil {
		return err
	}
	c.stopMode = m
	return nil
}

func (c *Connector) SetFile(path string) error {
	if err := c.mutableConfig("set_file"); err != nil {
		return err
	}
	c.file = path
	return nil
}

// NewIO appends a new variable to the catalog; allowed only while config is
// mutable (Entry or Checked).
func (c *Connector) NewIO(id, name string, causality Causality, kind Kind, cardinality int) (*IoVar, error) {
	if err := c.mutableConfig("new_io"); err != nil {
		return nil, err
	}
	if _, exists := c.allIOs[id]; exists {
		return nil, NewError("new_io", KindConfigValidation, "duplicate IoVar id %q", id)
	}
	v := NewIoVar(id, name, causality)
	dt := New(kind, cardinality)
	if err := dt.Allocate(); err != nil {
		return nil, err
	}
	v.SetDataType(dt)
	c.ios = append(c.ios, v)
	c.allIOs[id] = v
	return v, nil
}

// IO looks up a variable by id.
func (c *Connector) IO(id string) (*IoVar, bool) {
	v, ok := c.allIOs[id]
	return v, ok
}

// Inputs/Outputs/All return the declaration-ordered variable maps built by
// Check.
func (c *Connector) Inputs() map[string]*IoVar  { return c.inputs }
func (c *Connector) Outputs() map[string]*IoVar { return c.outputs }
func (c *Connector) All() map[string]*IoVar     { return c.allIOs }

// Check validates the connector and its I/O catalog, relabels every output
// as an input if viewer mode is set, builds the input/output maps in
// declaration order, and on success transitions Entry -> Checked.
func (c *Connector) Check() error {
	if c.state != StateEntry {
		return NewError("check", KindConfigValidation, "check() requires state Entry, got %s", c.state)
	}
	if c.name == "" {
		return NewError("check", KindConfigValidation, "connector name must not be empty")
	}
	if c.id == "" {
		c.id = uuid.New().String()
	}
	if c.typeTag == "" {
		c.typeTag = "ISL"
	}
	if c.sessionID == "" {
		logging.Default().Warnf("connector %q: empty session id", c.name)
	}
	if c.timeout < 0 {
		return NewError("check", KindConfigValidation, "connection timeout must be >= 0, got %v", c.timeout)
	}
	eventMode := c.stepSize == constants.EventTime
	if !eventMode {
		if !(0 <= c.startTime && c.startTime < c.endTime) {
			return NewError("check", KindConfigValidation, "invalid time window [%v, %v)", c.startTime, c.endTime)
		}
		if !(0 < c.stepSize && c.stepSize < c.endTime-c.startTime) {
			return NewError("check", KindConfigValidation, "step %v must be in (0, %v)", c.stepSize, c.endTime-c.startTime)
		}
	}
	if !(0 < c.stepTolerance && c.stepTolerance < 1) {
		return NewError("check", KindConfigValidation, "step tolerance %v must be in (0, 1)", c.stepTolerance)
	}
	if len(c.ios) == 0 {
		return NewError("check", KindConfigValidation, "connector %q has no IoVars", c.name)
	}
	for _, v := range c.ios {
		if err := v.Check(); err != nil {
			return err
		}
	}

	c.inputs = make(map[string]*IoVar)
	c.outputs = make(map[string]*IoVar)
	for _, v := range c.ios {
		causality := v.Causality()
		if c.viewer && causality == Output {
			v.causality = Input
			causality = Input
		}
		if causality == Input {
			c.inputs[v.ID()] = v
		} else {
			c.outputs[v.ID()] = v
		}
	}

	c.uid = c.uidHash()
	c.state = StateChecked
	return nil
}

func (c *Connector) ioLayout(v *IoVar) ring.Layout {
	dt := v.DataType()
	return ring.Layout{
		MaxStr:      c.maxStr,
		MaxReaders:  c.maxReaders,
		FifoDepth:   c.maxFifoDepth,
		SizeOf:      dt.SizeOf(),
		Cardinality: dt.Cardinality(),
	}
}

func (c *Connector) ioVariableID(v *IoVar) uint32 {
	h := fnv.New32a()
	h.Write([]byte(v.ID()))
	return h.Sum32()
}

// Create requires Checked. If viewer mode, it only advances the state bits
// (no ConnectorShm, no channels of its own). Otherwise it allocates the
// connector's descriptor segment, creates a writer Channel for every output
// that's on the bus, seeds each with the variable's initial value at
// start_time, and registers itself in the process-wide RegistryShm.
func (c *Connector) Create(session string) error {
	if c.state != StateChecked {
		return NewError("create", KindConfigValidation, "create() requires state Checked, got %s", c.state)
	}
	if session != "" {
		c.sessionID = session
	}

	if c.viewer {
		c.state = StateCreated
		return nil
	}

	rec := wire.ConnectorRecord{
		Type:  typeTagToUint32(c.typeTag),
		ID:    c.uid,
		PID:   uint64(c.pid),
		UUID:  c.id,
		Name:  c.name,
		File:  c.file,
		NData: int32(len(c.ios)),
	}
	shm, err := registry.CreateConnectorShm(c.sessionID, c.uid, rec, c.maxStr)
	if err != nil {
		return WrapError("create", err)
	}
	c.connectorShm = shm

	for _, v := range c.outputs {
		if !v.OnBus() {
			continue
		}
		cfg := channel.Config{
			Session:       c.sessionID,
			ConnectID:     v.ConnectID(),
			VariableID:    c.ioVariableID(v),
			VariableName:  v.Name(),
			TypeID:        int32(v.DataType().Kind()),
			Layout:        c.ioLayout(v),
			OriginalStep:  v.EffectiveStep(c.stepSize),
			StepTolerance: c.stepTolerance,
		}
		ch, err := channel.CreateWriter(cfg, v.DataType().Initial(), c.startTime)
		if err != nil {
			c.connectorShm.Detach()
			return WrapError("create", err)
		}
		c.channels[v.ID()] = ch
		v.MarkConnected()
	}

	rshm, err := sharedRegistryShm(c.maxStr, c.maxRunSims)
	if err != nil {
		return WrapError("create", err)
	}
	slot, err := rshm.Add(wire.RegistrySlot{ISLID: c.uid, PID: uint64(c.pid), Name: c.name, Session: c.sessionID})
	if err != nil {
		return WrapError("create", err)
	}
	c.registrySlot = slot

	c.state = StateCreated
	return nil
}

func (c *Connector) registryKey() string {
	return fmt.Sprintf("%s/%d", c.sessionID, c.uid)
}

// Connect requires Created. Viewer connectors attach every I/O as a reader
// regardless of declared causality (Check already relabeled outputs to
// inputs). Non-viewer connectors attach every bus-facing input, register
// themselves in the in-process Registry, and start the wall-clock timer.
func (c *Connector) Connect(wait time.Duration) error {
	if c.state != StateCreated {
		return NewError("connect", KindConfigValidation, "connect() requires state Created, got %s", c.state)
	}

	if c.viewer {
		for _, v := range c.inputs {
			if !v.OnBus() {
				continue
			}
			if err := c.attachReader(v, wait); err != nil {
				return err
			}
		}
		c.state = StateConnected
		c.timerStart = time.Now()
		return nil
	}

	registry.Default().Add(c.registryKey(), c)

	// Non-viewer connectors always attach with their own configured
	// timeout; unlike the viewer path above, wait's magnitude plays no
	// part here (c.timeout <= 0 means wait forever).
	var timeout time.Duration
	if c.timeout > 0 {
		timeout = time.Duration(c.timeout * float64(time.Second))
	}
	for _, v := range c.inputs {
		if !v.OnBus() {
			continue
		}
		if err := c.attachReader(v, timeout); err != nil {
			return err
		}
	}

	c.timerStart = time.Now()
	c.state = StateConnected
	return nil
}

func (c *Connector) attachReader(v *IoVar, timeout time.Duration) error {
	cfg := channel.Config{
		Session:       c.sessionID,
		ConnectID:     v.ConnectID(),
		VariableID:    c.ioVariableID(v),
		VariableName:  v.Name(),
		TypeID:        int32(v.DataType().Kind()),
		Layout:        c.ioLayout(v),
		OriginalStep:  v.EffectiveStep(c.stepSize),
		StepTolerance: c.stepTolerance,
	}
	ch, err := channel.AttachReader(cfg, timeout)
	if err != nil {
		return WrapError("connect", err)
	}
	c.channels[v.ID()] = ch
	v.MarkConnected()
	return nil
}

// Disconnect requires Created or Connected. It stops the timer, removes
// itself from the RegistryShm and the in-process Registry, disconnects
// every channel (which wakes blocked peers and lets them observe
// terminated), and detaches the connector's own descriptor segment.
// Returns to Checked.
func (c *Connector) Disconnect() error {
	if c.state != StateCreated && c.state != StateConnected {
		return NewError("disconnect", KindConfigValidation, "disconnect() requires state Created or Connected, got %s", c.state)
	}
	if !c.timerStart.IsZero() {
		c.elapsed += time.Since(c.timerStart)
		c.timerStart = time.Time{}
	}

	if !c.viewer {
		if registryShm != nil && c.registrySlot >= 0 {
			registryShm.Remove(c.registrySlot)
			c.registrySlot = -1
		}
		if c.connectorShm != nil {
			c.connectorShm.Detach()
			c.connectorShm = nil
		}
		registry.Default().Remove(c.registryKey())
	}

	var firstErr error
	for id, ch := range c.channels {
		if err := ch.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.channels, id)
	}

	c.StopListening()
	c.StopListeningGlobal()

	c.state = StateChecked
	if firstErr != nil {
		return WrapError("disconnect", firstErr)
	}
	return nil
}

// IsTerminated reports the connector's terminated flag.
func (c *Connector) IsTerminated() bool { return c.terminated.Load() }

// SetTerminated sets the connector's terminated flag and, when setting it
// true, propagates the flag to every open channel so in-flight set/get
// calls observe it and fail fast.
func (c *Connector) SetTerminated(v bool) error {
	c.terminated.Store(v)
	if v {
		for _, ch := range c.channels {
			if err := ch.SetTerminated(true); err != nil {
				return WrapError("set_terminated", err)
			}
		}
	}
	return nil
}

// ListenToExitSession starts a background listener on this session's stop
// semaphore; release wakes it according to StopMode.
func (c *Connector) ListenToExitSession() error {
	s, err := stopbus.OpenSession(c.sessionID)
	if err != nil {
		return WrapError("listen_to_exit_session", err)
	}
	mode := stopbus.ModeStop
	if c.stopMode == StopModeExit {
		mode = stopbus.ModeExit
	}
	c.listener = stopbus.NewListener(s, mode, func(exit bool) {
		if exit {
			os.Exit(0)
		}
		c.SetTerminated(true)
	})
	c.listener.Start()
	return nil
}

// StopListening closes the session stop-bus listener, if one was started.
func (c *Connector) StopListening() {
	if c.listener != nil {
		c.listener.Close()
		c.listener = nil
	}
}

// ListenToExitGlobal starts a background listener on the host-wide stop
// semaphore; release wakes it according to StopMode.
func (c *Connector) ListenToExitGlobal() error {
	s, err := stopbus.OpenGlobal()
	if err != nil {
		return WrapError("listen_to_exit_global", err)
	}
	mode := stopbus.ModeStop
	if c.stopMode == StopModeExit {
		mode = stopbus.ModeExit
	}
	c.globalListener = stopbus.NewListener(s, mode, func(exit bool) {
		if exit {
			os.Exit(0)
		}
		c.SetTerminated(true)
	})
	c.globalListener.Start()
	return nil
}

// StopListeningGlobal closes the global stop-bus listener, if one was
// started.
func (c *Connector) StopListeningGlobal() {
	if c.globalListener != nil {
		c.globalListener.Close()
		c.globalListener = nil
	}
}

// SendStopSession releases the stop semaphore for the given session,
// waking every listener registered against it.
func SendStopSession(session string) error {
	return WrapError("send_stop_session", stopbus.SendStopSession(session))
}

// SendStopRequest releases the global stop semaphore, waking every
// listener registered against it.
func SendStopRequest() error {
	return WrapError("send_stop_request", stopbus.SendStopRequest())
}

// channelFor returns the live Channel for a given IoVar id, or a
// lookup-miss error.
func (c *Connector) channelFor(id string) (*channel.Channel, error) {
	ch, ok := c.channels[id]
	if !ok {
		return nil, NewError("channel_for", KindLookupMiss, "no channel for IoVar %q", id)
	}
	return ch, nil
}

// SetData writes value at time t with step (negative substitutes the
// variable's effective step) for the given output IoVar.
func (c *Connector) SetData(id string, value []byte, t, step float64) error {
	ch, err := c.channelFor(id)
	if err != nil {
		return err
	}
	start := time.Now()
	err = ch.Set(value, t, step)
	c.observer.ObserveSet(uint64(len(value)), uint64(time.Since(start)), false, err == nil)
	if err != nil {
		return WrapError("set_data", err)
	}
	return nil
}

// SetEventData writes value with the event-time sentinel.
func (c *Connector) SetEventData(id string, value []byte) error {
	ch, err := c.channelFor(id)
	if err != nil {
		return err
	}
	return WrapError("set_event_data", ch.SetEvent(value))
}

// GetData reads the next unread sample for the given input IoVar
// (time-unaware path).
func (c *Connector) GetData(id string, out []byte) (t, step float64, err error) {
	ch, err := c.channelFor(id)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	t, step, err = ch.Get(out)
	c.observer.ObserveGet(uint64(len(out)), uint64(time.Since(start)), false, err == nil)
	if err != nil {
		return 0, 0, WrapError("get_data", err)
	}
	if c.recorder != nil {
		c.recorder.Record(id, t, step, out)
	}
	return t, step, nil
}

// GetEventData reads the next event-style sample, discarding time/step.
func (c *Connector) GetEventData(id string, out []byte) error {
	ch, err := c.channelFor(id)
	if err != nil {
		return err
	}
	if err := ch.GetEvent(out); err != nil {
		return WrapError("get_event_data", err)
	}
	if c.recorder != nil {
		c.recorder.Record(id, constants.EventTime, constants.EventTime, out)
	}
	return nil
}

// GetDataAt is the time-indexed read for the given input IoVar.
func (c *Connector) GetDataAt(id string, out []byte, inTime float64) (float64, error) {
	ch, err := c.channelFor(id)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	outTime, err := ch.GetAt(out, inTime)
	c.observer.ObserveGetAt(uint64(len(out)), uint64(time.Since(start)), false, err == nil)
	if err != nil {
		return 0, WrapError("get_data_at", err)
	}
	if c.recorder != nil {
		c.recorder.Record(id, outTime, 0, out)
	}
	return outTime, nil
}
