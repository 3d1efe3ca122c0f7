// Package navigator localizes an oriented robot on the integer grid from two
// probe moves and plans a collision-avoiding path to the origin using only
// relative turns and unit moves. Grounded on the teacher's go-sol Session:
// a struct owning the live connection plus accumulated protocol state,
// exposing one method per wire command.
package navigator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glennswest/robotserver/geometry"
	"github.com/glennswest/robotserver/protoerr"
	"github.com/glennswest/robotserver/transport"
)

const (
	maxTurnReplyLen = 12
	maxMoveReplyLen = 12
)

// Robot is the per-session navigation state: the planner's own model of
// where the robot is, which way it faces, and which lattice points it has
// learned are blocked.
type Robot struct {
	Position   geometry.Vector
	Direction  geometry.Vector
	Collisions map[geometry.Vector]struct{}
}

// Navigator drives a Robot over a framed connection.
type Navigator struct {
	conn  *transport.Conn
	Robot *Robot
}

// New creates a Navigator bound to conn, with no Robot yet (Localize must
// run first).
func New(conn *transport.Conn) *Navigator {
	return &Navigator{conn: conn}
}

func (n *Navigator) move() (geometry.Vector, error) {
	if err := n.conn.SendString("102 MOVE\a\b"); err != nil {
		return geometry.Vector{}, err
	}
	reply, err := n.conn.ReadExpected(maxMoveReplyLen)
	if err != nil {
		return geometry.Vector{}, err
	}
	return parseMoveReply(reply)
}

func (n *Navigator) turnLeft() error {
	if err := n.conn.SendString("103 TURN LEFT\a\b"); err != nil {
		return err
	}
	_, err := n.conn.ReadExpected(maxTurnReplyLen)
	return err
}

func (n *Navigator) turnRight() error {
	if err := n.conn.SendString("104 TURN RIGHT\a\b"); err != nil {
		return err
	}
	_, err := n.conn.ReadExpected(maxTurnReplyLen)
	return err
}

func parseMoveReply(reply []byte) (geometry.Vector, error) {
	fields := strings.Split(string(reply), " ")
	if len(fields) != 3 || fields[0] != "OK" {
		return geometry.Vector{}, protoerr.SyntaxError(fmt.Sprintf("malformed MOVE reply %q", reply), nil)
	}
	x, errX := strconv.Atoi(fields[1])
	y, errY := strconv.Atoi(fields[2])
	if errX != nil || errY != nil {
		return geometry.Vector{}, protoerr.SyntaxError(fmt.Sprintf("malformed MOVE reply %q", reply), nil)
	}
	return geometry.Vector{X: x, Y: y}, nil
}

// Localize issues the two initial probe moves (turning left and re-probing
// while blocked) and records the robot's resulting pose in n.Robot.
func (n *Navigator) Localize() error {
	p1, err := n.move()
	if err != nil {
		return err
	}
	p2, err := n.move()
	if err != nil {
		return err
	}

	for p2 == p1 {
		if err := n.turnLeft(); err != nil {
			return err
		}
		p2, err = n.move()
		if err != nil {
			return err
		}
	}

	direction := p2.Sub(p1)
	n.Robot = &Robot{
		Position:   p2,
		Direction:  direction,
		Collisions: make(map[geometry.Vector]struct{}),
	}
	return nil
}

// bestNext selects, among position's 4 neighbours, the one with strictly
// minimum Manhattan distance to the origin that is neither a known
// collision nor prevPos. The neighbour order from geometry.Neighbours
// provides the tie-break: only a strictly smaller distance displaces the
// current best.
func bestNext(position geometry.Vector, prevPos *geometry.Vector, collisions map[geometry.Vector]struct{}) geometry.Vector {
	neighbours := geometry.Neighbours(position)
	best := neighbours[0]
	bestDist := -1
	for _, cand := range neighbours {
		if _, blocked := collisions[cand]; blocked {
			continue
		}
		if prevPos != nil && cand == *prevPos {
			continue
		}
		d := geometry.Manhattan(cand, geometry.Origin)
		if bestDist == -1 || d < bestDist {
			best = cand
			bestDist = d
		}
	}
	return best
}

// turnsToFace returns the number of left rotations needed to align facing
// with target, in [0,4). It reports false if target is not one of the 4
// cardinal unit directions reachable from facing — the planner's design
// guarantees this never happens for a true grid neighbour, so a caller
// encountering it has a navigation invariant violation (protoerr.LogicError),
// not a bug to recover from silently.
func turnsToFace(facing, target geometry.Vector) (int, bool) {
	d := facing
	for i := 0; i < 4; i++ {
		if d == target {
			return i, true
		}
		d = d.Left()
	}
	return 0, false
}

// GetToGoal drives the robot from its localized pose to the origin,
// discovering and routing around obstacles as MOVE commands report no
// displacement.
func (n *Navigator) GetToGoal() error {
	if n.Robot == nil {
		return protoerr.LogicError("GetToGoal called before Localize", nil)
	}
	robot := n.Robot

	var prevPos *geometry.Vector
	for robot.Position != geometry.Origin {
		next := bestNext(robot.Position, prevPos, robot.Collisions)

		turns, ok := turnsToFace(robot.Direction, next.Sub(robot.Position))
		if !ok {
			return protoerr.LogicError(fmt.Sprintf("no rotation aligns %v with target displacement %v", robot.Direction, next.Sub(robot.Position)), nil)
		}

		for i := 0; i < turns; i++ {
			if err := n.turnLeft(); err != nil {
				return err
			}
			robot.Direction = robot.Direction.Left()
		}

		before := robot.Position
		newPos, err := n.move()
		if err != nil {
			return err
		}

		if newPos == next {
			robot.Position = newPos
			prevPos = &before
		} else {
			robot.Collisions[next] = struct{}{}
			// prevPos is intentionally left unchanged: the step was
			// rejected, the robot did not move.
		}
	}
	return nil
}
