package pathset

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/tzf-key/loki-network/xnode"
)

// Key identifies one entry in a PathSet: the upstream router this path
// runs through and the receive-side path ID we chose for it.
type Key struct {
	Upstream xnode.RouterID
	RXID     xnode.PathID
}

// PathSet owns a collection of Paths and exposes selection and
// lifecycle operations. Every public method that reads or changes the
// path map acquires mu for its full duration; Name, SetName,
// MinRequiredForRoles, SetMinRequiredForRoles and HandlePathBuildTimeout
// do not take the lock. Held regions are short and never call back into
// user code except the pure, non-blocking predicate passed to
// GetCurrentIntroductionsWithFilter. Grounded on circuit.Circuit's
// lock-for-full-duration discipline (rmu/wmu held across each public
// method's body).
type PathSet struct {
	mu                  sync.Mutex
	paths               map[Key]Path
	numPaths            int
	logger              *slog.Logger
	name                string
	minRequiredForRoles func(Role) int
}

// New creates a PathSet with a soft target of numPaths paths.
func New(numPaths int, logger *slog.Logger) *PathSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &PathSet{
		paths:    make(map[Key]Path),
		numPaths: numPaths,
		logger:   logger,
		name:     "pathset",
	}
}

// Name returns a label for this set, used in log messages. SetName
// changes it; a Name method on a type that embeds PathSet does not
// change the label PathSet's own log messages use.
func (s *PathSet) Name() string {
	return s.name
}

// SetName overrides the label used in log messages.
func (s *PathSet) SetName(name string) {
	s.name = name
}

// MinRequiredForRoles reports how many live paths supporting roles this
// set wants to keep around. The base implementation requires none of
// any role; SetMinRequiredForRoles overrides it, the Go stand-in for
// subclassing a virtual method.
func (s *PathSet) MinRequiredForRoles(roles Role) int {
	if s.minRequiredForRoles == nil {
		return 0
	}
	return s.minRequiredForRoles(roles)
}

// SetMinRequiredForRoles installs f as the implementation
// MinRequiredForRoles and ShouldBuildMoreForRoles consult. Passing nil
// restores the base "requires none" behavior.
func (s *PathSet) SetMinRequiredForRoles(f func(Role) int) {
	s.minRequiredForRoles = f
}

// AddPath inserts path under (path.Upstream(), path.RXID()). If that
// key already exists, the insert is a no-op: the existing entry wins
// rather than being overwritten by the new one.
func (s *PathSet) AddPath(p Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key{Upstream: p.Upstream(), RXID: p.RXID()}
	if _, exists := s.paths[key]; exists {
		return
	}
	s.paths[key] = p
}

// RemovePath erases the entry for path, by the same key AddPath used.
func (s *PathSet) RemovePath(p Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, Key{Upstream: p.Upstream(), RXID: p.RXID()})
}

// GetByUpstream is an exact key lookup.
func (s *PathSet) GetByUpstream(remote xnode.RouterID, rxid xnode.PathID) Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paths[Key{Upstream: remote, RXID: rxid}]
}

// TickPaths invokes each path's own tick with the current time.
func (s *PathSet) TickPaths(now int64, router any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.paths {
		p.Tick(now, router)
	}
}

// ExpirePaths removes every entry whose Expired(now) is true. Safe
// under iteration: Go's range-over-map permits deleting the current
// key mid-loop.
func (s *PathSet) ExpirePaths(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.paths {
		if p.Expired(now) {
			delete(s.paths, key)
		}
	}
}

// HandlePathBuildTimeout logs at warn level; it makes no state change
// by default. Callers that want removal on timeout do so explicitly.
func (s *PathSet) HandlePathBuildTimeout(p Path) {
	s.logger.Warn("path build timed out", "pathset", s.Name(), "hops", p.HopsString())
}

// ShouldBuildMore reports whether more paths should be built: true iff
// the Building count is <= target AND the Established count is <=
// target. This admits overshoot by one relative to the target on
// either axis, whether that is read as intentional hysteresis or an
// off-by-one; the comparison is kept as <= rather than < on both sides.
func (s *PathSet) ShouldBuildMore(now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	building := s.countStatusLocked(StatusBuilding)
	if building > s.numPaths {
		return false
	}
	established := s.countStatusLocked(StatusEstablished)
	return established <= s.numPaths
}

// ShouldBuildMoreForRoles reports whether the number of paths
// supporting any of roles and not ExpiresSoon(now) is strictly less
// than MinRequiredForRoles(roles).
func (s *PathSet) ShouldBuildMoreForRoles(now int64, roles Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	minRequired := s.MinRequiredForRoles(roles)
	has := 0
	for _, p := range s.paths {
		if p.SupportsAnyRoles(roles) && !p.ExpiresSoon(now) {
			has++
		}
	}
	return has < minRequired
}

// NumPathsExistingAt counts ready paths that will not have expired by
// futureTime.
func (s *PathSet) NumPathsExistingAt(futureTime int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.paths {
		if p.IsReady() && !p.Expired(futureTime) {
			count++
		}
	}
	return count
}

func (s *PathSet) countStatusLocked(st Status) int {
	count := 0
	for _, p := range s.paths {
		if p.Status() == st {
			count++
		}
	}
	return count
}

// NumInStatus counts entries in the given status.
func (s *PathSet) NumInStatus(st Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countStatusLocked(st)
}

// AvailablePaths counts Established paths supporting any of roles.
func (s *PathSet) AvailablePaths(roles Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.paths {
		if p.Status() == StatusEstablished && p.SupportsAnyRoles(roles) {
			count++
		}
	}
	return count
}

// GetEstablishedPathClosestTo returns the ready, role-supporting path
// whose Endpoint() minimizes endpoint XOR id, lexicographically. Ties
// resolve to whichever candidate is encountered first during the
// (unordered) map walk; callers must not depend on a particular one of
// the tied candidates, only that the same process is stable for a
// given call.
func (s *PathSet) GetEstablishedPathClosestTo(id xnode.RouterID, roles Role) Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best Path
	dist := allOnes()
	for _, p := range s.paths {
		if !p.IsReady() || !p.SupportsAnyRoles(roles) {
			continue
		}
		d := xnode.XORDistance(p.Endpoint(), id)
		if d.Less(dist) {
			dist = d
			best = p
		}
	}
	return best
}

func allOnes() xnode.RouterID {
	var r xnode.RouterID
	for i := range r {
		r[i] = 0xff
	}
	return r
}

// GetNewestPathByRouter returns, among ready role-supporting paths
// whose Endpoint() equals id, the one with the largest intro expiry.
func (s *PathSet) GetNewestPathByRouter(id xnode.RouterID, roles Role) Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	var chosen Path
	var chosenIntro Introduction
	for _, p := range s.paths {
		if !p.IsReady() || !p.SupportsAnyRoles(roles) || p.Endpoint() != id {
			continue
		}
		intro := p.Introduction()
		if chosen == nil || chosenIntro.ExpiresAt < intro.ExpiresAt {
			chosen = p
			chosenIntro = intro
		}
	}
	return chosen
}

// GetPathByRouter returns, among ready role-supporting paths whose
// Endpoint() equals id, the one with the smallest intro latency.
func (s *PathSet) GetPathByRouter(id xnode.RouterID, roles Role) Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	var chosen Path
	var chosenIntro Introduction
	for _, p := range s.paths {
		if !p.IsReady() || !p.SupportsAnyRoles(roles) || p.Endpoint() != id {
			continue
		}
		intro := p.Introduction()
		if chosen == nil || chosenIntro.LatencyMS > intro.LatencyMS {
			chosen = p
			chosenIntro = intro
		}
	}
	return chosen
}

// GetByEndpointWithID returns the first path satisfying
// IsEndpoint(ep, id); no ready/role filter is applied.
func (s *PathSet) GetByEndpointWithID(ep xnode.RouterID, id xnode.PathID) Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.paths {
		if p.IsEndpoint(ep, id) {
			return p
		}
	}
	return nil
}

// GetPathByID returns the first path whose receive-side ID equals id;
// no ready/role filter is applied.
func (s *PathSet) GetPathByID(id xnode.PathID) Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.paths {
		if p.RXID() == id {
			return p
		}
	}
	return nil
}

// PickRandomEstablishedPath picks uniformly at random among ready,
// role-supporting paths using the process RNG (math/rand/v2), not a
// cryptographic source: selection here is among already-trusted
// established paths, not a trust decision over untrusted candidates.
func (s *PathSet) PickRandomEstablishedPath(roles Role) Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	var established []Path
	for _, p := range s.paths {
		if p.IsReady() && p.SupportsAnyRoles(roles) {
			established = append(established, p)
		}
	}
	if len(established) == 0 {
		return nil
	}
	return established[rand.IntN(len(established))]
}

// IntroFilter is the pure, non-blocking predicate
// GetCurrentIntroductionsWithFilter runs under the PathSet's lock.
type IntroFilter func(Introduction) bool

// GetCurrentIntroductions clears set and fills it with the Introduction
// of every ready path, returning true iff any were inserted.
func (s *PathSet) GetCurrentIntroductions(set map[Introduction]struct{}) bool {
	return s.GetCurrentIntroductionsWithFilter(set, func(Introduction) bool { return true })
}

// GetCurrentIntroductionsWithFilter clears set and fills it with the
// Introduction of every ready path for which filter returns true.
// filter runs while the PathSet's mutex is held and must be pure and
// non-blocking.
func (s *PathSet) GetCurrentIntroductionsWithFilter(set map[Introduction]struct{}, filter IntroFilter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range set {
		delete(set, k)
	}
	count := 0
	for _, p := range s.paths {
		if !p.IsReady() {
			continue
		}
		intro := p.Introduction()
		if !filter(intro) {
			continue
		}
		set[intro] = struct{}{}
		count++
	}
	return count > 0
}

// GetNewestIntro sets intro to the ready path with the largest
// ExpiresAt, or clears intro and returns false if none are ready.
func (s *PathSet) GetNewestIntro(intro *Introduction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	intro.Clear()
	found := false
	for _, p := range s.paths {
		if !p.IsReady() {
			continue
		}
		candidate := p.Introduction()
		if candidate.ExpiresAt > intro.ExpiresAt {
			*intro = candidate
			found = true
		}
	}
	return found
}
