package game

import "math"

// collisionEpsilon keeps a just-separated pair from re-triggering on float noise
const collisionEpsilon = 1e-6

// Advance integrates every non-defeated player from its input flags, applies
// and decays knockback, clamps to the world and derives the moving flag.
// It returns the players whose direction or moving flag changed.
func Advance(players []*Player, dt float64) []*Player {
	var changed []*Player
	for _, p := range players {
		if p.Defeated {
			continue
		}
		prevDir, prevMoving := p.Direction, p.Moving

		dx, dy := p.Input.axes()
		inputActive := dx != 0 || dy != 0
		if inputActive {
			p.X += float64(dx) * PlayerSpeed * dt
			p.Y += float64(dy) * PlayerSpeed * dt
			if d, ok := directionFromAxes(dx, dy); ok {
				p.Direction = d
			}
		}

		knock := 0.0
		if p.KnockbackFrames > 0 {
			p.X += p.KnockbackX
			p.Y += p.KnockbackY
			knock = math.Hypot(p.KnockbackX, p.KnockbackY)
			p.KnockbackFrames--
			if p.KnockbackFrames == 0 {
				p.KnockbackX, p.KnockbackY = 0, 0
			} else {
				p.KnockbackX *= KnockbackDecay
				p.KnockbackY *= KnockbackDecay
			}
		}

		p.clampToWorld()
		p.Moving = inputActive || knock > MovingThreshold

		if p.Direction != prevDir || p.Moving != prevMoving {
			changed = append(changed, p)
		}
	}
	return changed
}

// ResolveCollisions separates every overlapping pair of players. When exactly
// one of the pair is input-driven the idle one absorbs most of the correction.
// A pair left exactly at the collision distance is not touched again.
func ResolveCollisions(players []*Player) {
	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			a, b := players[i], players[j]
			if a.Defeated || b.Defeated {
				continue
			}
			resolvePair(a, b)
		}
	}
}

func resolvePair(a, b *Player) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dist := math.Hypot(dx, dy)
	if dist >= PlayerCollisionDistance-collisionEpsilon {
		return
	}

	nx, ny := 1.0, 0.0
	if dist > 0 {
		nx, ny = dx/dist, dy/dist
	}
	overlap := PlayerCollisionDistance - dist

	aMoving := a.Input.Active()
	bMoving := b.Input.Active()
	fa, fb := 0.5, 0.5
	switch {
	case aMoving && !bMoving:
		fa, fb = PushFactorMover, PushFactorIdle
	case !aMoving && bMoving:
		fa, fb = PushFactorIdle, PushFactorMover
	}
	_ = fb // b takes the remainder (1-fa) inside separateAxis

	a.X, b.X = separateAxis(a.X, b.X, nx*overlap, fa, WorldWidth)
	a.Y, b.Y = separateAxis(a.Y, b.Y, ny*overlap, fa, WorldHeight)

	// Movers rebound away from the contact
	if aMoving {
		a.applyKnockback(-nx*CollisionKnockback, -ny*CollisionKnockback, KnockbackFrames)
	}
	if bMoving {
		b.applyKnockback(nx*CollisionKnockback, ny*CollisionKnockback, KnockbackFrames)
	}

}

// separateAxis grows b-a by total along one axis, a taking share fa of it.
// Whatever the wall absorbs from one side is handed to the other, so a single
// pass leaves the pair separated unless both are pinned.
func separateAxis(a, b, total, fa, limit float64) (float64, float64) {
	na := Clamp(a-total*fa, 0, limit)
	nb := Clamp(b+total+(na-a), 0, limit)
	na = Clamp(a+(nb-b)-total, 0, limit)
	return na, nb
}
