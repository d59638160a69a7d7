package openisl

import (
	"os"
	"strconv"

	"github.com/esimstech/openisl-go/internal/channel"
	"github.com/esimstech/openisl-go/internal/config"
	"github.com/esimstech/openisl-go/internal/constants"
)

func causalityToXML(c Causality) string {
	if c == Output {
		return "output"
	}
	return "input"
}

func causalityFromXML(s string) Causality {
	if s == "output" {
		return Output
	}
	return Input
}

func scalarXML(dt *DataType) *config.ScalarXML {
	s := &config.ScalarXML{Size: dt.Cardinality()}
	if dt.IsAllocated() {
		s.InitialValue = literalFromBytes(dt.Kind(), dt.Initial())
	}
	return s
}

func literalFromBytes(k Kind, b []byte) string {
	switch k {
	case KindReal:
		if len(b) < 8 {
			return ""
		}
		return strconv.FormatFloat(bytesToFloat64(b), 'g', -1, 64)
	case KindInteger:
		if len(b) < 4 {
			return ""
		}
		return strconv.FormatInt(int64(bytesToInt32(b)), 10)
	case KindBoolean:
		if len(b) < 1 {
			return ""
		}
		return strconv.FormatBool(b[0] != 0)
	case KindString:
		return string(b)
	default:
		return ""
	}
}

func variableToXML(v *IoVar) config.VariableXML {
	xv := config.VariableXML{
		ID:          v.ID(),
		Name:        v.Name(),
		ConnectID:   v.ConnectID(),
		Causality:   causalityToXML(v.Causality()),
		Store:       v.Store(),
		SyncTimeout: v.SyncTimeoutMs(),
	}
	if v.stepSize >= 0 {
		step := v.stepSize
		xv.StepSize = &step
	}
	dt := v.DataType()
	if dt == nil {
		return xv
	}
	switch dt.Kind() {
	case KindReal:
		xv.Real = scalarXML(dt)
	case KindInteger:
		xv.Integer = scalarXML(dt)
	case KindBoolean:
		xv.Boolean = scalarXML(dt)
	case KindString:
		xv.String = scalarXML(dt)
	}
	return xv
}

func variableFromXML(xv config.VariableXML) (*IoVar, error) {
	causality := causalityFromXML(xv.Causality)
	v := NewIoVar(xv.ID, xv.Name, causality)
	v.SetConnectID(xv.ConnectID)
	v.SetStore(xv.Store)
	v.SetSyncTimeoutMs(xv.SyncTimeout)
	if xv.StepSize != nil {
		v.SetStepSize(*xv.StepSize)
	}

	var kind Kind
	var scalar *config.ScalarXML
	switch {
	case xv.Real != nil:
		kind, scalar = KindReal, xv.Real
	case xv.Integer != nil:
		kind, scalar = KindInteger, xv.Integer
	case xv.Boolean != nil:
		kind, scalar = KindBoolean, xv.Boolean
	case xv.String != nil:
		kind, scalar = KindString, xv.String
	default:
		return nil, NewError("load", KindConfigValidation, "variable %q has no typed value element", xv.ID)
	}

	dt := New(kind, scalar.Size)
	if err := dt.Allocate(); err != nil {
		return nil, err
	}
	if scalar.InitialValue != "" {
		if err := dt.SetInitialString(scalar.InitialValue); err != nil {
			return nil, err
		}
	}
	v.SetDataType(dt)
	if err := v.MarkFullyDefined(); err != nil {
		return nil, err
	}
	return v, nil
}

// Save writes the connector's current configuration and I/O catalog to
// path as a persisted model document.
func (c *Connector) Save(path string) error {
	doc := &config.Document{
		Information: config.InformationXML{Name: c.name, ID: c.id, Type: c.typeTag},
		Cosimulation: config.CosimulationXML{
			Session:        c.sessionID,
			ConnectTimeout: c.timeout,
			StartTime:      c.startTime,
			EndTime:        c.endTime,
			StepSize:       c.stepSize,
			StepTolerance:  c.stepTolerance,
		},
	}
	for _, v := range c.ios {
		doc.Variables.Variable = append(doc.Variables.Variable, variableToXML(v))
	}
	if err := config.Save(path, doc); err != nil {
		return WrapError("save", err)
	}
	c.file = path
	return nil
}

// Load populates a freshly-constructed, Entry-state connector from a
// persisted model document, returning the same Entry-state connector
// ready for Check.
func Load(path string) (*Connector, error) {
	doc, err := config.Load(path)
	if err != nil {
		return nil, WrapError("load", err)
	}

	c := &Connector{
		name:          doc.Information.Name,
		id:            doc.Information.ID,
		typeTag:       doc.Information.Type,
		sessionID:     doc.Cosimulation.Session,
		timeout:       doc.Cosimulation.ConnectTimeout,
		startTime:     doc.Cosimulation.StartTime,
		endTime:       doc.Cosimulation.EndTime,
		stepSize:      doc.Cosimulation.StepSize,
		stepTolerance: doc.Cosimulation.StepTolerance,
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
		file:          path,
		pid:           os.Getpid(),
	}
	if c.typeTag == "" {
		c.typeTag = "ISL"
	}

	for _, xv := range doc.Variables.Variable {
		v, err := variableFromXML(xv)
		if err != nil {
			return nil, err
		}
		if _, exists := c.allIOs[v.ID()]; exists {
			return nil, NewError("load", KindConfigValidation, "duplicate IoVar id %q in %q", v.ID(), path)
		}
		c.ios = append(c.ios, v)
		c.allIOs[v.ID()] = v
	}
	return c, nil
}
