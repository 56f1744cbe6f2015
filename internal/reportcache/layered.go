package reportcache

// Layered writes through to memory and snapshots. Get only answers from
// memory; Fallback answers from the snapshot.
type Layered struct {
	Fresh     *Memory
	Snapshots Cache
}

// NewLayered combines a memory cache and an optional snapshot store.
func NewLayered(fresh *Memory, snapshots Cache) *Layered {
	return &Layered{Fresh: fresh, Snapshots: snapshots}
}

func (l *Layered) Get(k Key) (*Entry, bool) {
	return l.Fresh.Get(k)
}

// Fallback returns the last good report regardless of age.
func (l *Layered) Fallback(k Key) (*Entry, bool) {
	if l.Snapshots == nil {
		return nil, false
	}
	return l.Snapshots.Get(k)
}

func (l *Layered) Put(k Key, e Entry) error {
	_ = l.Fresh.Put(k, e)
	if l.Snapshots == nil {
		return nil
	}
	return l.Snapshots.Put(k, e)
}

func (l *Layered) Delete(k Key) error {
	_ = l.Fresh.Delete(k)
	if l.Snapshots == nil {
		return nil
	}
	return l.Snapshots.Delete(k)
}
