package id

// UUIDGen unifies the number and string shaped ID generators.
type UUIDGen interface {
	Number() uint64
	Str() string
}

var _ UUIDGen = (*uuidDelegator)(nil)

// uuidDelegator adapts a pair of closures to the UUIDGen interface.
type uuidDelegator struct {
	number func() uint64
	str    func() string
}

func (id *uuidDelegator) Number() uint64 { return id.number() }
func (id *uuidDelegator) Str() string    { return id.str() }
