package scape

import (
	"context"
	"fmt"

	"coinevo/internal/nn"
)

// ActionSpace is the ordered set of commands a network ranks each step.
var ActionSpace = []string{CmdTakeCoin, CmdGoEast, CmdGoWest, CmdGoNorth, CmdGoSouth}

// historyWidth is one retained step: the action-space admissibility, the
// chosen action index and the step result.
const historyWidth = 7

// Shaping tunes how an episode rewards and steers the policy.
type Shaping struct {
	StepsToRetain     int  `json:"steps_to_retain"`
	FailedStepReward  int  `json:"failed_step_reward"`
	ValidStepReward   int  `json:"valid_step_reward"`
	ForceRandomChoice bool `json:"force_random_choice"`
	ForcePickup       bool `json:"force_pickup"`
	ChainRewards      bool `json:"chain_rewards"`
}

// InputSize is the flat observation width for a history depth.
func InputSize(stepsToRetain int) int {
	return stepsToRetain*historyWidth + len(ActionSpace)
}

// CoinCollectorScape plays one coin-collector game per evaluation. Fitness is
// the number of steps remaining when the coin is taken, or FailureFitness.
type CoinCollectorScape struct {
	game    Game
	shaping Shaping
}

// FailureFitness is returned when the episode ends without the coin.
const FailureFitness Fitness = 1

func NewCoinCollectorScape(game Game, shaping Shaping) (*CoinCollectorScape, error) {
	if err := game.Validate(); err != nil {
		return nil, err
	}
	if shaping.StepsToRetain < 1 {
		return nil, fmt.Errorf("steps to retain must be >= 1, got %d", shaping.StepsToRetain)
	}
	if _, err := NewWorld(game); err != nil {
		return nil, err
	}
	return &CoinCollectorScape{game: game, shaping: shaping}, nil
}

func (s *CoinCollectorScape) Name() string {
	return s.game.Name
}

func (s *CoinCollectorScape) Game() Game {
	return s.game
}

func (s *CoinCollectorScape) Inputs() int {
	return InputSize(s.shaping.StepsToRetain)
}

func (s *CoinCollectorScape) Outputs() int {
	return len(ActionSpace)
}

func (s *CoinCollectorScape) Evaluate(ctx context.Context, agent Agent, rng Rand) (Fitness, Trace, error) {
	runner, ok := agent.(StepAgent)
	if !ok {
		return 0, nil, fmt.Errorf("agent %s does not implement step runner", agent.ID())
	}
	world, err := NewWorld(s.game)
	if err != nil {
		return 0, nil, err
	}
	obs := world.Reset()

	history := make([][historyWidth]float64, s.shaping.StepsToRetain)
	input := make([]float64, s.Inputs())
	failed, forcedRandom, forcedPickup := 0, 0, 0

	for remaining := s.game.MaxSteps; remaining > 0; remaining-- {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		admissible := admissibility(obs.Admissible)
		encode(input, admissible, history)

		out, err := runner.RunStep(ctx, input)
		if err != nil {
			return 0, nil, fmt.Errorf("agent %s step: %w", agent.ID(), err)
		}
		if len(out) != len(ActionSpace) {
			return 0, nil, fmt.Errorf("agent %s output size mismatch: got=%d want=%d", agent.ID(), len(out), len(ActionSpace))
		}
		ranked := nn.ArgsortDescending(out)
		action := ranked[0]

		last := history[len(history)-1]
		if s.shaping.ForceRandomChoice && float64(action) == last[5] && last[6] == float64(s.shaping.FailedStepReward) {
			action = ranked[1+int(rng.Float64()*float64(len(ranked)-1))%(len(ranked)-1)]
			forcedRandom++
		}
		if s.shaping.ForcePickup && admissible[0] == 1 {
			action = 0
			forcedPickup++
		}

		obs = world.Step(ActionSpace[action])
		if obs.Won {
			return Fitness(remaining), Trace{
				"won":           true,
				"moves":         obs.Moves,
				"failed_steps":  failed,
				"forced_random": forcedRandom,
				"forced_pickup": forcedPickup,
			}, nil
		}

		result := s.shaping.ValidStepReward
		if obs.Text == ObsNoExit || obs.Text == ObsNoObject {
			result = s.shaping.FailedStepReward
			failed++
		} else if s.shaping.ChainRewards {
			result += int(last[6])
		}

		var row [historyWidth]float64
		copy(row[:], admissible)
		row[5] = float64(action)
		row[6] = float64(result)
		copy(history, history[1:])
		history[len(history)-1] = row
	}

	return FailureFitness, Trace{
		"won":           false,
		"moves":         obs.Moves,
		"failed_steps":  failed,
		"forced_random": forcedRandom,
		"forced_pickup": forcedPickup,
	}, nil
}

func admissibility(commands []string) []float64 {
	out := make([]float64, len(ActionSpace))
	for i, action := range ActionSpace {
		for _, cmd := range commands {
			if cmd == action {
				out[i] = 1
				break
			}
		}
	}
	return out
}

func encode(dst, admissible []float64, history [][historyWidth]float64) {
	n := copy(dst, admissible)
	for _, row := range history {
		n += copy(dst[n:], row[:])
	}
}
