package scape

import (
	"fmt"
	"math/rand"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	CmdTakeCoin  = "take coin"
	CmdGoEast    = "go east"
	CmdGoWest    = "go west"
	CmdGoNorth   = "go north"
	CmdGoSouth   = "go south"
	CmdLook      = "look"
	CmdInventory = "inventory"
)

const (
	ObsNoExit   = "You can't go that way."
	ObsNoObject = "You can't see any such thing."
)

type direction int

const (
	east direction = iota
	west
	north
	south
)

var directions = []direction{east, west, north, south}

func (d direction) String() string {
	return [...]string{"east", "west", "north", "south"}[d]
}

var deltas = [...]cell{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

func (d direction) delta() (int, int) {
	return deltas[d].x, deltas[d].y
}

func (d direction) opposite() direction {
	return [...]direction{west, east, south, north}[d]
}

type cell struct{ x, y int }

type room struct {
	name  string
	at    cell
	exits map[direction]int
}

// Observation is what the player sees after a command.
type Observation struct {
	Text       string
	Admissible []string
	Won        bool
	Moves      int
}

// World is a single coin-collector episode: a chain of rooms with the coin
// in the last one, plus optional dead-end rooms.
type World struct {
	game    Game
	rooms   []room
	player  int
	coin    int
	hasCoin bool
	moves   int
	fold    cases.Caser
}

var roomNames = []string{
	"kitchen", "pantry", "scullery", "cellar", "hallway", "parlour", "study",
	"library", "bedroom", "bathroom", "attic", "garage", "workshop", "laundry",
	"conservatory", "dining room", "nursery", "gallery", "porch", "shed",
}

// NewWorld lays out the game's rooms from its seed. Layout is deterministic
// for a given game definition.
func NewWorld(game Game) (*World, error) {
	if game.Rooms < 1 {
		return nil, fmt.Errorf("game %s: rooms must be >= 1, got %d", game.Name, game.Rooms)
	}
	if game.Distractors < 0 {
		return nil, fmt.Errorf("game %s: distractors must be >= 0, got %d", game.Name, game.Distractors)
	}
	rng := rand.New(rand.NewSource(game.Seed))
	w := &World{game: game, fold: cases.Fold()}
	if err := w.layPath(rng); err != nil {
		return nil, err
	}
	w.layDistractors(rng)
	w.coin = game.Rooms - 1
	return w, nil
}

func (w *World) layPath(rng *rand.Rand) error {
	const attempts = 100
	for try := 0; try < attempts; try++ {
		w.rooms = w.rooms[:0]
		occupied := map[cell]int{{0, 0}: 0}
		w.rooms = append(w.rooms, w.newRoom(cell{0, 0}))
		ok := true
		for len(w.rooms) < w.game.Rooms {
			from := len(w.rooms) - 1
			free := w.freeDirections(w.rooms[from].at, occupied)
			if len(free) == 0 {
				ok = false
				break
			}
			d := free[rng.Intn(len(free))]
			w.link(from, d, occupied)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("game %s: could not lay out %d rooms", w.game.Name, w.game.Rooms)
}

func (w *World) layDistractors(rng *rand.Rand) {
	occupied := make(map[cell]int, len(w.rooms))
	for i, r := range w.rooms {
		occupied[r.at] = i
	}
	for placed := 0; placed < w.game.Distractors; placed++ {
		anchors := rng.Perm(len(w.rooms))
		linked := false
		for _, from := range anchors {
			free := w.freeDirections(w.rooms[from].at, occupied)
			if len(free) == 0 {
				continue
			}
			w.link(from, free[rng.Intn(len(free))], occupied)
			linked = true
			break
		}
		if !linked {
			return
		}
	}
}

func (w *World) newRoom(at cell) room {
	i := len(w.rooms)
	name := roomNames[i%len(roomNames)]
	if i >= len(roomNames) {
		name = fmt.Sprintf("%s %d", name, i/len(roomNames)+1)
	}
	return room{name: name, at: at, exits: map[direction]int{}}
}

func (w *World) freeDirections(at cell, occupied map[cell]int) []direction {
	var free []direction
	for _, d := range directions {
		dx, dy := d.delta()
		if _, taken := occupied[cell{at.x + dx, at.y + dy}]; !taken {
			free = append(free, d)
		}
	}
	return free
}

func (w *World) link(from int, d direction, occupied map[cell]int) {
	dx, dy := d.delta()
	at := cell{w.rooms[from].at.x + dx, w.rooms[from].at.y + dy}
	to := len(w.rooms)
	w.rooms = append(w.rooms, w.newRoom(at))
	occupied[at] = to
	w.rooms[from].exits[d] = to
	w.rooms[to].exits[d.opposite()] = from
}

// Reset returns the player to the first room with the coin back in place.
func (w *World) Reset() Observation {
	w.player = 0
	w.hasCoin = false
	w.moves = 0
	return w.observe(w.describe())
}

func (w *World) Rooms() int {
	return len(w.rooms)
}

func (w *World) Won() bool {
	return w.hasCoin
}

// Step applies one player command. Unknown commands are reported, not
// returned as errors, so a policy can never crash the episode.
func (w *World) Step(command string) Observation {
	cmd := w.normalize(command)
	w.moves++
	switch {
	case cmd == CmdTakeCoin:
		if w.hasCoin || w.player != w.coin {
			return w.observe(ObsNoObject)
		}
		w.hasCoin = true
		return w.observe("You pick up the coin from the floor.")
	case strings.HasPrefix(cmd, "go "):
		d, ok := parseDirection(strings.TrimPrefix(cmd, "go "))
		if !ok {
			return w.observe(ObsNoExit)
		}
		next, ok := w.rooms[w.player].exits[d]
		if !ok {
			return w.observe(ObsNoExit)
		}
		w.player = next
		return w.observe(w.describe())
	case cmd == CmdLook:
		return w.observe(w.describe())
	case cmd == CmdInventory:
		if w.hasCoin {
			return w.observe("You are carrying: a coin.")
		}
		return w.observe("You are carrying nothing.")
	default:
		return w.observe("That's not a verb I recognise.")
	}
}

// Admissible lists the commands that make sense in the current room.
func (w *World) Admissible() []string {
	out := make([]string, 0, 7)
	if !w.hasCoin && w.player == w.coin {
		out = append(out, CmdTakeCoin)
	}
	for _, d := range directions {
		if _, ok := w.rooms[w.player].exits[d]; ok {
			out = append(out, "go "+d.String())
		}
	}
	return append(out, CmdLook, CmdInventory)
}

func (w *World) normalize(command string) string {
	return strings.Join(strings.Fields(w.fold.String(command)), " ")
}

func (w *World) describe() string {
	r := w.rooms[w.player]
	var b strings.Builder
	fmt.Fprintf(&b, "-= %s =-\n", cases.Title(language.Und).String(r.name))
	if !w.hasCoin && w.player == w.coin {
		b.WriteString("You see a coin on the floor.\n")
	}
	var exits []string
	for _, d := range directions {
		if _, ok := r.exits[d]; ok {
			exits = append(exits, d.String())
		}
	}
	if len(exits) > 0 {
		fmt.Fprintf(&b, "There are exits to the %s.", strings.Join(exits, ", "))
	}
	return b.String()
}

func (w *World) observe(text string) Observation {
	return Observation{Text: text, Admissible: w.Admissible(), Won: w.hasCoin, Moves: w.moves}
}

func parseDirection(word string) (direction, bool) {
	for _, d := range directions {
		if d.String() == word {
			return d, true
		}
	}
	return 0, false
}
