package pathset

import (
	"testing"

	"github.com/tzf-key/loki-network/xnode"
)

// fakePath is a minimal Path for exercising PathSet without a real
// onion-circuit implementation.
type fakePath struct {
	status    Status
	roles     Role
	endpoint  xnode.RouterID
	rxid      xnode.PathID
	upstream  xnode.RouterID
	expiresAt int64
	latency   int64
	expireAt  int64
}

func (p *fakePath) Status() Status               { return p.status }
func (p *fakePath) SupportsAnyRoles(r Role) bool { return SupportsAny(p.roles, r) }
func (p *fakePath) Endpoint() xnode.RouterID     { return p.endpoint }
func (p *fakePath) RXID() xnode.PathID           { return p.rxid }
func (p *fakePath) Upstream() xnode.RouterID     { return p.upstream }
func (p *fakePath) IsReady() bool                { return p.status == StatusEstablished }
func (p *fakePath) Tick(now int64, r any)        {}
func (p *fakePath) HopsString() string           { return "fake" }
func (p *fakePath) ExpiresSoon(now int64) bool   { return p.expiresAt-now < 60000 }
func (p *fakePath) Expired(now int64) bool       { return now >= p.expireAt }
func (p *fakePath) IsEndpoint(ep xnode.RouterID, id xnode.PathID) bool {
	return p.endpoint == ep && p.rxid == id
}
func (p *fakePath) Introduction() Introduction {
	return Introduction{PathID: p.rxid, Router: p.endpoint, ExpiresAt: p.expiresAt, LatencyMS: p.latency}
}

func idWithByte(b byte) xnode.RouterID {
	var id xnode.RouterID
	id[0] = b
	return id
}

func pathIDWithByte(b byte) xnode.PathID {
	var id xnode.PathID
	id[0] = b
	return id
}

func TestAddAndGetByUpstream(t *testing.T) {
	ps := New(4, nil)
	p := &fakePath{upstream: idWithByte(1), rxid: pathIDWithByte(1), status: StatusEstablished, roles: RoleAny}
	ps.AddPath(p)

	got := ps.GetByUpstream(p.Upstream(), p.RXID())
	if got != p {
		t.Fatal("expected AddPath then GetByUpstream to return the same path")
	}

	ps.RemovePath(p)
	if ps.GetByUpstream(p.Upstream(), p.RXID()) != nil {
		t.Fatal("expected nil after RemovePath")
	}
}

func TestAddPathDuplicateKeepsExisting(t *testing.T) {
	ps := New(4, nil)
	key := struct {
		up   xnode.RouterID
		rxid xnode.PathID
	}{idWithByte(9), pathIDWithByte(9)}

	first := &fakePath{upstream: key.up, rxid: key.rxid, status: StatusBuilding, roles: RoleAny}
	second := &fakePath{upstream: key.up, rxid: key.rxid, status: StatusEstablished, roles: RoleAny}

	ps.AddPath(first)
	ps.AddPath(second)

	got := ps.GetByUpstream(key.up, key.rxid)
	if got != first {
		t.Fatal("expected duplicate AddPath to keep the first entry")
	}
}

func TestShouldBuildMoreAdmitsOneOvershoot(t *testing.T) {
	ps := New(2, nil)
	for i := byte(0); i < 2; i++ {
		ps.AddPath(&fakePath{upstream: idWithByte(i), rxid: pathIDWithByte(i), status: StatusBuilding, roles: RoleAny})
	}
	if !ps.ShouldBuildMore(0) {
		t.Fatal("expected ShouldBuildMore true at building==target")
	}

	// Push one more into Building; building=3 > target=2 -> should stop.
	ps.AddPath(&fakePath{upstream: idWithByte(9), rxid: pathIDWithByte(9), status: StatusBuilding, roles: RoleAny})
	if ps.ShouldBuildMore(0) {
		t.Fatal("expected ShouldBuildMore false once building exceeds target")
	}
}

func TestGetEstablishedPathClosestTo(t *testing.T) {
	ps := New(8, nil)
	target := idWithByte(0x10)

	// Endpoints at varying Hamming distance from target.
	mk := func(ep byte, rx byte) *fakePath {
		return &fakePath{
			upstream: idWithByte(rx), rxid: pathIDWithByte(rx),
			endpoint: idWithByte(ep), status: StatusEstablished, roles: RoleAny,
		}
	}
	p1 := mk(0x13, 1) // distance 0x03
	p2 := mk(0x11, 2) // distance 0x01
	p3 := mk(0x17, 3) // distance 0x07
	p4 := mk(0x11, 4) // distance 0x01 (tied with p2)

	for _, p := range []*fakePath{p1, p2, p3, p4} {
		ps.AddPath(p)
	}

	closest := ps.GetEstablishedPathClosestTo(target, RoleAny)
	if closest != p2 && closest != p4 {
		t.Fatalf("expected one of the distance-1 paths, got endpoint %v", closest.Endpoint())
	}
}

func TestGetPathByRouterPicksLowestLatency(t *testing.T) {
	ps := New(8, nil)
	ep := idWithByte(5)
	fast := &fakePath{upstream: idWithByte(1), rxid: pathIDWithByte(1), endpoint: ep, status: StatusEstablished, roles: RoleAny, latency: 40, expiresAt: 100}
	slow := &fakePath{upstream: idWithByte(2), rxid: pathIDWithByte(2), endpoint: ep, status: StatusEstablished, roles: RoleAny, latency: 80, expiresAt: 200}
	ps.AddPath(fast)
	ps.AddPath(slow)

	if got := ps.GetPathByRouter(ep, RoleAny); got != fast {
		t.Fatal("expected GetPathByRouter to return the lower-latency path")
	}
	if got := ps.GetNewestPathByRouter(ep, RoleAny); got != slow {
		t.Fatal("expected GetNewestPathByRouter to return the later-expiring path")
	}
}

func TestExpirePathsRemovesExpired(t *testing.T) {
	ps := New(8, nil)
	alive := &fakePath{upstream: idWithByte(1), rxid: pathIDWithByte(1), status: StatusEstablished, roles: RoleAny, expireAt: 1000}
	dead := &fakePath{upstream: idWithByte(2), rxid: pathIDWithByte(2), status: StatusEstablished, roles: RoleAny, expireAt: 10}
	ps.AddPath(alive)
	ps.AddPath(dead)

	ps.ExpirePaths(500)

	if ps.GetByUpstream(alive.Upstream(), alive.RXID()) == nil {
		t.Fatal("did not expect the still-alive path to be removed")
	}
	if ps.GetByUpstream(dead.Upstream(), dead.RXID()) != nil {
		t.Fatal("expected the expired path to be removed")
	}
}

func TestShouldBuildMoreForRoles(t *testing.T) {
	ps := New(8, nil)
	p := &fakePath{upstream: idWithByte(1), rxid: pathIDWithByte(1), status: StatusEstablished, roles: 0x1, expiresAt: 1000000}
	ps.AddPath(p)

	ps.SetMinRequiredForRoles(func(Role) int { return 2 })
	if !ps.ShouldBuildMoreForRoles(0, 0x1) {
		t.Fatal("expected true: only 1 supporting path, need 2")
	}

	ps.SetMinRequiredForRoles(func(Role) int { return 1 })
	if ps.ShouldBuildMoreForRoles(0, 0x1) {
		t.Fatal("expected false: 1 supporting path satisfies a minimum of 1")
	}
}

func TestMinRequiredForRolesDefaultsToZero(t *testing.T) {
	ps := New(8, nil)
	if got := ps.MinRequiredForRoles(RoleAny); got != 0 {
		t.Fatalf("expected default MinRequiredForRoles of 0, got %d", got)
	}
	if ps.ShouldBuildMoreForRoles(0, RoleAny) {
		t.Fatal("expected false when the default minimum of 0 is already satisfied")
	}
}

func TestGetCurrentIntroductionsWithFilter(t *testing.T) {
	ps := New(8, nil)
	ep1 := idWithByte(1)
	ep2 := idWithByte(2)
	ps.AddPath(&fakePath{upstream: idWithByte(10), rxid: pathIDWithByte(10), endpoint: ep1, status: StatusEstablished, roles: RoleAny, expiresAt: 10})
	ps.AddPath(&fakePath{upstream: idWithByte(20), rxid: pathIDWithByte(20), endpoint: ep2, status: StatusEstablished, roles: RoleAny, expiresAt: 20})

	set := make(map[Introduction]struct{})
	ok := ps.GetCurrentIntroductionsWithFilter(set, func(i Introduction) bool {
		return i.Router == ep2
	})
	if !ok {
		t.Fatal("expected at least one matching introduction")
	}
	if len(set) != 1 {
		t.Fatalf("expected exactly 1 filtered introduction, got %d", len(set))
	}
}

func TestGetNewestIntro(t *testing.T) {
	ps := New(8, nil)
	ps.AddPath(&fakePath{upstream: idWithByte(1), rxid: pathIDWithByte(1), status: StatusEstablished, roles: RoleAny, expiresAt: 50})
	ps.AddPath(&fakePath{upstream: idWithByte(2), rxid: pathIDWithByte(2), status: StatusEstablished, roles: RoleAny, expiresAt: 150})

	var intro Introduction
	if !ps.GetNewestIntro(&intro) {
		t.Fatal("expected a newest intro to be found")
	}
	if intro.ExpiresAt != 150 {
		t.Fatalf("got ExpiresAt=%d, want 150", intro.ExpiresAt)
	}
}

func TestGetNewestIntroEmpty(t *testing.T) {
	ps := New(8, nil)
	var intro Introduction
	if ps.GetNewestIntro(&intro) {
		t.Fatal("expected false with no ready paths")
	}
	if intro != (Introduction{}) {
		t.Fatal("expected intro to be left cleared")
	}
}

func TestPickRandomEstablishedPathEmpty(t *testing.T) {
	ps := New(8, nil)
	if ps.PickRandomEstablishedPath(RoleAny) != nil {
		t.Fatal("expected nil with no established paths")
	}
}
