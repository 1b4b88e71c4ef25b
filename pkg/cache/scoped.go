package cache

// ScopedKeyer wraps a Keyer with a prefix so that several grids can share
// one backend without colliding. The server scopes keys by the namespace of
// its configuration.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "ns:ops:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// PlacementKey generates a prefixed placement key.
func (k *ScopedKeyer) PlacementKey(documentHash string, opts PlacementKeyOpts) string {
	return k.prefix + k.inner.PlacementKey(documentHash, opts)
}
