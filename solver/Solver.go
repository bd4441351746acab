// Package solver implements functionality to wrap Gorgonia Solvers
// so that they can be serialized into configuration files and have
// their learning rate changed between training steps.
package solver

import (
	"encoding/json"
	"fmt"
	"reflect"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	Vanilla Type = "Vanilla"
	RMSProp Type = "RMSProp"
)

// Solver wraps Gorgonia Solvers so that they can be JSON marshalled and
// unmarshalled.
type Solver struct {
	G.Solver `json:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	solver := Solver{Type: t, Config: c}
	solver.Solver = solver.Config.Create()

	return &solver, nil
}

// New returns a new Solver of type t with default hyperparameters
// and the given step size. Gradients are not averaged over a batch.
func New(t Type, stepSize float64) (*Solver, error) {
	switch t {
	case Adam:
		return NewDefaultAdam(stepSize, 1)
	case RMSProp:
		return NewDefaultRMSProp(stepSize, 1)
	case Vanilla:
		return NewVanilla(stepSize, 1, -1)
	default:
		return nil, fmt.Errorf("new: unknown solver type %q", t)
	}
}

// SetLearningRate changes the learning rate of the Solver. The
// wrapped Gorgonia Solver is re-created, so any running statistics
// it keeps, such as Adam's moment estimates, are reset. Setting the
// current learning rate is a no-op.
func (s *Solver) SetLearningRate(lr float64) {
	if lr == s.Config.LearningRate() {
		return
	}
	s.Config = s.Config.WithLearningRate(lr)
	s.Solver = s.Config.Create()
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(
		data,
		"Type",
		"Config",
		map[string]reflect.Type{
			string(Vanilla): reflect.TypeOf(VanillaConfig{}),
			string(Adam):    reflect.TypeOf(AdamConfig{}),
			string(RMSProp): reflect.TypeOf(RMSPropConfig{}),
		})
	if err != nil {
		return err
	}

	s.Type = typeName
	s.Config = config
	s.Solver = s.Config.Create()

	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField, valueJsonField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	typeName, ok := m[typeJsonField].(string)
	if !ok {
		return nil, "", fmt.Errorf("unmarshalConfig: missing solver type")
	}
	ty, found := customTypes[typeName]
	if !found {
		return nil, "", fmt.Errorf("unmarshalConfig: unknown solver type %q",
			typeName)
	}
	value := reflect.New(ty)

	valueBytes, err := json.Marshal(m[valueJsonField])
	if err != nil {
		return nil, "", err
	}

	if err = json.Unmarshal(valueBytes, value.Interface()); err != nil {
		return nil, "", err
	}

	return value.Elem().Interface().(Config), Type(typeName), nil
}

// Config implements a Gorgonia Solver configuration and can be used to
// create Gorgonia Solvers they describe.
type Config interface {
	Create() G.Solver

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool

	LearningRate() float64

	// WithLearningRate returns a copy of the Config with a new
	// learning rate
	WithLearningRate(float64) Config
}
