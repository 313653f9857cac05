package game

import (
	"math/rand"
	"testing"

	"arena-server/protocol"
)

func newObstacles(max int) *ObstacleManager {
	return NewObstacleManager(max, rand.New(rand.NewSource(3)), nil)
}

func destroy(t *testing.T, m *ObstacleManager, id string) []Event {
	t.Helper()
	var last []Event
	for i := 0; i < ObstacleMaxHealth; i++ {
		last = m.TakeHit(id, "p", t0)
	}
	if len(last) != 1 || last[0].Name != protocol.MsgObstacleDestroyed {
		t.Fatalf("expected obstacleDestroyed for %s, got %+v", id, last)
	}
	return last
}

func TestGroupPositions(t *testing.T) {
	S := 10.0
	cases := []struct {
		pattern Pattern
		n       int
		want    []Point
	}{
		{PatternLineHorizontal, 3, []Point{{0, 0}, {S, 0}, {2 * S, 0}}},
		{PatternLineVertical, 3, []Point{{0, 0}, {0, S}, {0, 2 * S}}},
		{PatternLShape, 4, []Point{{0, 0}, {0, S}, {0, 2 * S}, {S, 2 * S}}},
		{PatternSquare, 4, []Point{{0, 0}, {S, 0}, {0, S}, {S, S}}},
		{PatternSquare, 5, []Point{{0, 0}, {S, 0}, {2 * S, 0}, {0, S}, {S, S}}},
	}
	for _, tc := range cases {
		got := GroupPositions(tc.pattern, tc.n, 0, 0, S)
		if len(got) != len(tc.want) {
			t.Errorf("%s/%d: expected %d points, got %d", tc.pattern, tc.n, len(tc.want), len(got))
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%s/%d: point %d expected %v, got %v", tc.pattern, tc.n, i, tc.want[i], got[i])
			}
		}
	}
}

func TestCreateEvictsOldestAtCap(t *testing.T) {
	m := newObstacles(3)
	var ids []string
	for i := 0; i < 3; i++ {
		s, _ := m.Create(float64(100+i*100), 300)
		ids = append(ids, s.ID)
	}

	s, events := m.Create(600, 300)
	if m.ActiveCount() != 3 {
		t.Fatalf("expected cap held at 3, got %d", m.ActiveCount())
	}
	if len(events) != 2 || events[0].Name != protocol.MsgObstacleDestroyed || events[1].Name != protocol.MsgNewObstacle {
		t.Fatalf("expected eviction then newObstacle, got %+v", events)
	}
	if msg := events[0].Data.(protocol.ObstacleDestroyedMsg); msg.ID != ids[0] || !msg.Evicted {
		t.Errorf("expected %s evicted, got %+v", ids[0], msg)
	}
	states := m.States()
	if states[0].ID != ids[1] || states[2].ID != s.ID {
		t.Errorf("unexpected FIFO order %+v", states)
	}
}

func TestTakeHitDestroysIntoOutline(t *testing.T) {
	m := newObstacles(10)
	s, _ := m.Create(400, 400)

	events := m.TakeHit(s.ID, "p", t0)
	if len(events) != 1 || events[0].Name != protocol.MsgObstacleHit {
		t.Fatalf("expected obstacleHit, got %+v", events)
	}
	if msg := events[0].Data.(protocol.ObstacleHitMsg); msg.Health != ObstacleMaxHealth-1 {
		t.Errorf("expected health %d, got %d", ObstacleMaxHealth-1, msg.Health)
	}

	for i := 1; i < ObstacleMaxHealth; i++ {
		events = m.TakeHit(s.ID, "p", t0)
	}
	if len(events) != 1 || events[0].Name != protocol.MsgObstacleDestroyed {
		t.Fatalf("expected obstacleDestroyed, got %+v", events)
	}
	if m.ActiveCount() != 0 || m.PendingCount() != 1 {
		t.Errorf("expected 0 active and 1 pending, got %d/%d", m.ActiveCount(), m.PendingCount())
	}
	outlines := m.Outlines()
	if len(outlines) != 1 || outlines[0].ObstacleID != s.ID || outlines[0].X != 400 {
		t.Errorf("expected outline at the obstacle, got %+v", outlines)
	}
	if m.CheckPointCollision(400, 400, ProjectileRadius) {
		t.Error("outlines must not collide")
	}
	if events := m.TakeHit(s.ID, "p", t0); events != nil {
		t.Error("hit on destroyed obstacle should be ignored")
	}
}

func TestProcessRespawns(t *testing.T) {
	m := newObstacles(10)
	s, _ := m.Create(400, 400)
	destroy(t, m, s.ID)

	if events := m.ProcessRespawns(t0.Add(ObstacleRespawnDelay / 2)); events != nil {
		t.Fatalf("respawn fired early: %+v", events)
	}

	events := m.ProcessRespawns(t0.Add(ObstacleRespawnDelay))
	if len(events) != 2 || events[0].Name != protocol.MsgOutlineRemoved || events[1].Name != protocol.MsgObstacleRespawned {
		t.Fatalf("expected outlineRemoved then obstacleRespawned, got %+v", events)
	}
	re := events[1].Data.(protocol.ObstacleState)
	if re.ID == s.ID || re.OriginalID != s.ID || re.X != 400 || re.Y != 400 || re.Health != ObstacleMaxHealth {
		t.Errorf("unexpected respawn %+v", re)
	}
	if !m.CheckPointCollision(400, 400, ProjectileRadius) {
		t.Error("respawned obstacle should collide")
	}
	if len(m.Outlines()) != 0 || m.PendingCount() != 0 {
		t.Error("expected queue and outlines drained")
	}

	// Lineage survives a second destruction
	destroy(t, m, re.ID)
	events = m.ProcessRespawns(t0.Add(2 * ObstacleRespawnDelay))
	if again := events[1].Data.(protocol.ObstacleState); again.OriginalID != s.ID {
		t.Errorf("expected lineage %s, got %s", s.ID, again.OriginalID)
	}
}

func TestProcessRespawnsDefersAtCap(t *testing.T) {
	m := newObstacles(2)
	a, _ := m.Create(200, 300)
	b, _ := m.Create(400, 300)
	destroy(t, m, a.ID)
	destroy(t, m, b.ID)
	m.Create(600, 300)

	due := t0.Add(ObstacleRespawnDelay)
	events := m.ProcessRespawns(due)
	if m.ActiveCount() != 2 {
		t.Fatalf("expected cap reached, got %d active", m.ActiveCount())
	}
	respawned := 0
	for _, e := range events {
		if e.Name == protocol.MsgObstacleRespawned {
			respawned++
		}
	}
	if respawned != 1 || m.PendingCount() != 1 {
		t.Fatalf("expected one respawn and one deferred, got %d/%d", respawned, m.PendingCount())
	}
	if events := m.ProcessRespawns(due.Add(ObstacleRetryDelay - 1)); events != nil {
		t.Error("deferred respawn fired before retry delay")
	}
}

func TestCreateGroupPlacement(t *testing.T) {
	m := newObstacles(MaxObstacles)
	for g := 0; g < InitialObstacleGroups; g++ {
		before := m.ActiveCount()
		events := m.CreateGroup()
		added := m.ActiveCount() - before
		if len(events) == 0 {
			continue
		}
		if added < GroupMinSize || added > GroupMaxSize {
			t.Errorf("group %d: expected 3-5 obstacles, got %d", g, added)
		}
	}
	if m.ActiveCount() == 0 {
		t.Fatal("expected at least one group placed")
	}
	half := ObstacleSize / 2
	for _, o := range m.States() {
		if o.X-half < 0 || o.X+half > WorldWidth || o.Y-half < UITopMargin || o.Y+half > WorldHeight {
			t.Errorf("obstacle %s out of bounds at (%f, %f)", o.ID, o.X, o.Y)
		}
	}
}

func TestCreateGroupGivesUpWhenCrowded(t *testing.T) {
	m := newObstacles(1000)
	for x := 20.0; x < WorldWidth; x += 60 {
		for y := UITopMargin + 20; y < WorldHeight; y += 60 {
			m.add(x, y, "")
		}
	}
	before := m.ActiveCount()
	if events := m.CreateGroup(); events != nil {
		t.Errorf("expected placement to fail, got %d events", len(events))
	}
	if m.ActiveCount() != before {
		t.Error("failed placement must not add obstacles")
	}
}

func TestCheckPointCollision(t *testing.T) {
	m := newObstacles(10)
	m.Create(300, 300)
	if !m.CheckPointCollision(300+ObstacleSize/2, 300, 1) {
		t.Error("expected edge contact")
	}
	if m.CheckPointCollision(300+ObstacleSize/2+2, 300, 1) {
		t.Error("expected miss just outside")
	}
}

func TestActiveCountNeverExceedsCap(t *testing.T) {
	const max = 7
	m := newObstacles(max)
	rng := rand.New(rand.NewSource(11))
	now := t0

	check := func(step int, what string) {
		t.Helper()
		if got := m.ActiveCount(); got > max {
			t.Fatalf("step %d (%s): %d active obstacles, cap %d", step, what, got, max)
		}
	}

	for step := 0; step < 500; step++ {
		m.CreateGroup()
		check(step, "createGroup")

		if states := m.States(); len(states) > 0 {
			target := states[rng.Intn(len(states))]
			for i := 0; i < ObstacleMaxHealth; i++ {
				m.TakeHit(target.ID, "p", now)
			}
			check(step, "takeHit")
		}

		now = now.Add(ObstacleRetryDelay)
		m.ProcessRespawns(now)
		check(step, "processRespawns")
	}
}
