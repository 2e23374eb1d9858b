package dsk

import (
	"sync"

	"github.com/pkg/errors"
)

// FeatureMap is the registry of features known to a dataset.
type FeatureMap interface {
	// Get returns the statistics for the named feature, or nil if the feature
	// isn't in the map.
	Get(name string) VariableInfo

	// Size returns the number of features in the map.
	Size() int

	// Infos returns the statistics of every feature. The order is fixed by the
	// implementation and is the same on every call.
	Infos() []VariableInfo
}

// MutableFeatureMap is the build time FeatureMap. Features are kept in the
// order they were first added. It is safe for concurrent use, but the
// VariableInfos it hands out are live and should not be modified while other
// goroutines are observing.
type MutableFeatureMap struct {
	mu    sync.RWMutex
	names *Translator
	infos []VariableInfo
}

// NewMutableFeatureMap returns an empty MutableFeatureMap.
func NewMutableFeatureMap() *MutableFeatureMap {
	return &MutableFeatureMap{
		names: NewTranslator(),
	}
}

// Observe records the feature's value in the statistics kept for its name,
// creating a RealInfo the first time a name is seen.
func (m *MutableFeatureMap) Observe(f Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.names.GetID(f.Name)
	if id == uint64(len(m.infos)) {
		m.infos = append(m.infos, NewRealInfo(f.Name))
	}
	obs, ok := m.infos[id].(observer)
	if !ok {
		return errors.Wrapf(ErrNotObservable, "feature '%s' has %T", f.Name, m.infos[id])
	}
	obs.Observe(f.Value)
	return nil
}

// Put stores info under its name. If the name is already present, the
// existing info is replaced and keeps its position.
func (m *MutableFeatureMap) Put(info VariableInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.names.GetID(info.Name())
	if id == uint64(len(m.infos)) {
		m.infos = append(m.infos, info)
		return
	}
	m.infos[id] = info
}

// Get implements FeatureMap.
func (m *MutableFeatureMap) Get(name string) VariableInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.names.ID(name)
	if !ok {
		return nil
	}
	return m.infos[id]
}

// Size implements FeatureMap.
func (m *MutableFeatureMap) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.infos)
}

// Infos implements FeatureMap, returning infos in insertion order.
func (m *MutableFeatureMap) Infos() []VariableInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make([]VariableInfo, len(m.infos))
	copy(ret, m.infos)
	return ret
}

// IDInfo is the statistics of a feature along with its id in an
// ImmutableFeatureMap.
type IDInfo struct {
	ID   int
	Info VariableInfo
}

// ImmutableFeatureMap is the query time FeatureMap. Each feature has an id;
// ids are contiguous from 0 and never change. The map holds its own copies of
// the statistics and only ever hands out further copies, so nothing outside it
// can modify them.
type ImmutableFeatureMap struct {
	ids   *Translator
	infos []VariableInfo
}

// NewImmutableFeatureMap builds an ImmutableFeatureMap from deep copies of the
// infos in fm. Ids are assigned in the order fm.Infos returns them. Should a
// name appear twice, the first occurrence wins.
func NewImmutableFeatureMap(fm FeatureMap) *ImmutableFeatureMap {
	infos := fm.Infos()
	m := &ImmutableFeatureMap{
		ids:   NewTranslator(),
		infos: make([]VariableInfo, 0, len(infos)),
	}
	for _, info := range infos {
		if id := m.ids.GetID(info.Name()); id < uint64(len(m.infos)) {
			continue
		}
		m.infos = append(m.infos, info.Copy())
	}
	return m
}

// Get implements FeatureMap. The returned VariableInfo is a copy.
func (m *ImmutableFeatureMap) Get(name string) VariableInfo {
	id, ok := m.ids.ID(name)
	if !ok {
		return nil
	}
	return m.infos[id].Copy()
}

// ID returns the id of the named feature, and false if it isn't in the map.
func (m *ImmutableFeatureMap) ID(name string) (int, bool) {
	id, ok := m.ids.ID(name)
	return int(id), ok
}

// Name returns the name of the feature with the given id, and false if there
// is no such id.
func (m *ImmutableFeatureMap) Name(id int) (string, bool) {
	if id < 0 || id >= len(m.infos) {
		return "", false
	}
	return m.infos[id].Name(), true
}

// IDInfo returns the id and a copy of the statistics of the named feature.
func (m *ImmutableFeatureMap) IDInfo(name string) (IDInfo, bool) {
	id, ok := m.ids.ID(name)
	if !ok {
		return IDInfo{}, false
	}
	return IDInfo{ID: int(id), Info: m.infos[id].Copy()}, true
}

// Size implements FeatureMap.
func (m *ImmutableFeatureMap) Size() int { return len(m.infos) }

// Infos implements FeatureMap, returning copies in id order.
func (m *ImmutableFeatureMap) Infos() []VariableInfo {
	ret := make([]VariableInfo, len(m.infos))
	for i, info := range m.infos {
		ret[i] = info.Copy()
	}
	return ret
}
