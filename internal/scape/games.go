package scape

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

var ErrUnknownGame = errors.New("unknown game")

// Game defines one coin-collector map.
type Game struct {
	Name        string `ini:"-" json:"name"`
	Rooms       int    `ini:"rooms" json:"rooms"`
	MaxSteps    int    `ini:"max_steps" json:"max_steps"`
	Seed        int64  `ini:"seed" json:"seed"`
	Distractors int    `ini:"distractors" json:"distractors"`
}

func (g Game) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("game name is required")
	}
	if g.Rooms < 1 {
		return fmt.Errorf("game %s: rooms must be >= 1", g.Name)
	}
	if g.MaxSteps < 1 {
		return fmt.Errorf("game %s: max_steps must be >= 1", g.Name)
	}
	if g.Distractors < 0 {
		return fmt.Errorf("game %s: distractors must be >= 0", g.Name)
	}
	return nil
}

func builtInGames() []Game {
	return []Game{
		{Name: "2-3-10-v1", Rooms: 3, MaxSteps: 25, Seed: 2310, Distractors: 0},
		{Name: "coin_collector_5", Rooms: 5, MaxSteps: 150, Seed: 5, Distractors: 2},
		{Name: "coin_collector_15", Rooms: 15, MaxSteps: 450, Seed: 15, Distractors: 5},
	}
}

// Registry maps game names to definitions.
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

// NewRegistry returns a registry holding the built-in games.
func NewRegistry() *Registry {
	r := &Registry{games: make(map[string]Game)}
	for _, g := range builtInGames() {
		r.games[g.Name] = g
	}
	return r
}

// Register adds or replaces a game.
func (r *Registry) Register(g Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.Name] = g
	return nil
}

func (r *Registry) Lookup(name string) (Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[strings.TrimSpace(name)]
	if !ok {
		return Game{}, fmt.Errorf("%w: %s", ErrUnknownGame, name)
	}
	return g, nil
}

func (r *Registry) List() []Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadFile registers every section of an INI file as a game, e.g.
//
//	[maze_7]
//	rooms = 7
//	max_steps = 210
//	seed = 7
//	distractors = 3
func (r *Registry) LoadFile(path string) error {
	return r.load(path)
}

// LoadBytes is LoadFile for in-memory INI content.
func (r *Registry) LoadBytes(data []byte) error {
	return r.load(data)
}

func (r *Registry) load(source any) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, source)
	if err != nil {
		return fmt.Errorf("load game registry: %w", err)
	}
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		g := Game{}
		if err := section.MapTo(&g); err != nil {
			return fmt.Errorf("map game [%s]: %w", section.Name(), err)
		}
		g.Name = section.Name()
		if err := r.Register(g); err != nil {
			return err
		}
	}
	return nil
}
