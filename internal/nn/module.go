package nn

// Module is anything that owns trainable parameters.
//
// Optimizers are constructed from a module's parameters:
//
//	opt, err := optim.NewAdam(model.Parameters(), optim.DefaultAdamConfig())
type Module interface {
	// Parameters returns all trainable parameters of this module in a stable order.
	Parameters() []*Parameter
}

// ParameterList is an ordered collection of parameters that satisfies Module.
type ParameterList struct {
	params []*Parameter
	byName map[string]*Parameter
}

// NewParameterList creates a list holding params in order.
func NewParameterList(params ...*Parameter) *ParameterList {
	l := &ParameterList{byName: make(map[string]*Parameter, len(params))}
	for _, p := range params {
		l.Add(p)
	}
	return l
}

// Add appends p. A later parameter shadows an earlier one of the same name in Get.
func (l *ParameterList) Add(p *Parameter) {
	l.params = append(l.params, p)
	l.byName[p.Name()] = p
}

// Get returns the parameter with the given name.
func (l *ParameterList) Get(name string) (*Parameter, bool) {
	p, ok := l.byName[name]
	return p, ok
}

// Parameters implements Module.
func (l *ParameterList) Parameters() []*Parameter {
	out := make([]*Parameter, len(l.params))
	copy(out, l.params)
	return out
}

// Len returns the number of parameters.
func (l *ParameterList) Len() int {
	return len(l.params)
}

// ZeroGrad clears the gradient of every parameter.
func (l *ParameterList) ZeroGrad() {
	for _, p := range l.params {
		p.ZeroGrad()
	}
}
