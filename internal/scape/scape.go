package scape

import "context"

// Fitness is the integer reward of one episode.
type Fitness int

type Trace map[string]any

// Rand is the random source a scape draws from during an episode.
type Rand interface {
	Float64() float64
}

type Agent interface {
	ID() string
}

type StepAgent interface {
	Agent
	RunStep(ctx context.Context, input []float64) ([]float64, error)
}

type Scape interface {
	Name() string
	Evaluate(ctx context.Context, agent Agent, rng Rand) (Fitness, Trace, error)
}

// Shaped reports the observation and action sizes a scape feeds its agents.
type Shaped interface {
	Scape
	Inputs() int
	Outputs() int
}
