package tracker

import (
	"sort"
	"sync"

	"github.com/fernandafs/P2P-ProjectNapster/communication"
)

type fileSet map[string]struct{}

// Registry maps every joined peer to the set of file names it offers. All
// access goes through one RWMutex, so a reader sees each peer's set either
// before or after a write, never half-applied.
type Registry struct {
	mu    sync.RWMutex
	peers map[communication.PeerAddress]fileSet
}

func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[communication.PeerAddress]fileSet),
	}
}

// Join replaces addr's file set with files. Duplicate names collapse.
func (r *Registry) Join(addr communication.PeerAddress, files []string) {
	set := make(fileSet, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[addr] = set
}

// Update adds one file to addr's set. An unknown addr gets a new singleton
// set; created reports that case.
func (r *Registry) Update(addr communication.PeerAddress, file string) (created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.peers[addr]
	if !ok {
		set = make(fileSet, 1)
		r.peers[addr] = set
	}
	set[file] = struct{}{}
	return !ok
}

// Search returns every peer offering file, ordered by address. The result is
// empty, not nil, when nobody has it.
func (r *Registry) Search(file string) []communication.PeerAddress {
	r.mu.RLock()
	found := make([]communication.PeerAddress, 0)
	for addr, set := range r.peers {
		if _, ok := set[file]; ok {
			found = append(found, addr)
		}
	}
	r.mu.RUnlock()

	sortAddresses(found)
	return found
}

// Files returns a sorted copy of addr's set.
func (r *Registry) Files(addr communication.PeerAddress) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.peers[addr]
	if !ok {
		return nil, false
	}
	return setToSortedSlice(set), true
}

// FileNames returns every name offered by at least one peer, sorted.
func (r *Registry) FileNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make(fileSet)
	for _, set := range r.peers {
		for f := range set {
			all[f] = struct{}{}
		}
	}
	return setToSortedSlice(all)
}

// Len returns the number of joined peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func setToSortedSlice(set fileSet) []string {
	names := make([]string, 0, len(set))
	for f := range set {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

func sortAddresses(addrs []communication.PeerAddress) {
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Host != addrs[j].Host {
			return addrs[i].Host < addrs[j].Host
		}
		return addrs[i].Port < addrs[j].Port
	})
}
