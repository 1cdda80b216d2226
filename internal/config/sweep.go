package config

// Sweep lists alternative values per parameter. An empty list keeps the base
// experiment's value.
type Sweep struct {
	Generations            []int     `yaml:"generations"`
	SizeNewGenerations     []int     `yaml:"size_new_generations"`
	CarryOverCount         []int     `yaml:"carryover_count"`
	PointMutationChance    []float64 `yaml:"point_mutation_chance"`
	PointMutationAmount    []float64 `yaml:"point_mutation_amount"`
	PointMutationChanceMax []float64 `yaml:"point_mutation_chance_max"`
	PointMutationAmountMax []float64 `yaml:"point_mutation_amount_max"`
	PointMutationScalar    []float64 `yaml:"point_mutation_scalar"`
	Game                   []string  `yaml:"game"`
	StepsToRetain          []int     `yaml:"steps_to_retain"`
	FitnessBiasScalar      []float64 `yaml:"fitness_bias_scalar"`
	FailedStepReward       []int     `yaml:"failed_step_reward"`
	ValidStepReward        []int     `yaml:"valid_step_reward"`
	ForceRandomChoice      []bool    `yaml:"force_random_choice"`
	ForcePickup            []bool    `yaml:"force_pickup"`
	ChainRewards           []bool    `yaml:"chain_rewards"`
}

type axis struct {
	n   int
	set func(e *Experiment, i int)
}

func intAxis(values []int, field func(*Experiment) *int) axis {
	return axis{n: len(values), set: func(e *Experiment, i int) { *field(e) = values[i] }}
}

func floatAxis(values []float64, field func(*Experiment) *float64) axis {
	return axis{n: len(values), set: func(e *Experiment, i int) { *field(e) = values[i] }}
}

func boolAxis(values []bool, field func(*Experiment) *bool) axis {
	return axis{n: len(values), set: func(e *Experiment, i int) { *field(e) = values[i] }}
}

// axes is ordered outermost first; generations varies fastest.
func (s Sweep) axes() []axis {
	all := []axis{
		boolAxis(s.ChainRewards, func(e *Experiment) *bool { return &e.ChainRewards }),
		boolAxis(s.ForcePickup, func(e *Experiment) *bool { return &e.ForcePickup }),
		boolAxis(s.ForceRandomChoice, func(e *Experiment) *bool { return &e.ForceRandomChoice }),
		intAxis(s.ValidStepReward, func(e *Experiment) *int { return &e.ValidStepReward }),
		intAxis(s.FailedStepReward, func(e *Experiment) *int { return &e.FailedStepReward }),
		floatAxis(s.FitnessBiasScalar, func(e *Experiment) *float64 { return &e.FitnessBiasScalar }),
		intAxis(s.StepsToRetain, func(e *Experiment) *int { return &e.StepsToRetain }),
		{n: len(s.Game), set: func(e *Experiment, i int) { e.Game = s.Game[i] }},
		floatAxis(s.PointMutationScalar, func(e *Experiment) *float64 { return &e.PointMutationScalar }),
		floatAxis(s.PointMutationAmountMax, func(e *Experiment) *float64 { return &e.PointMutationAmountMax }),
		floatAxis(s.PointMutationChanceMax, func(e *Experiment) *float64 { return &e.PointMutationChanceMax }),
		floatAxis(s.PointMutationAmount, func(e *Experiment) *float64 { return &e.PointMutationAmount }),
		floatAxis(s.PointMutationChance, func(e *Experiment) *float64 { return &e.PointMutationChance }),
		intAxis(s.CarryOverCount, func(e *Experiment) *int { return &e.CarryOverCount }),
		intAxis(s.SizeNewGenerations, func(e *Experiment) *int { return &e.SizeNewGenerations }),
		intAxis(s.Generations, func(e *Experiment) *int { return &e.Generations }),
	}
	out := all[:0]
	for _, a := range all {
		if a.n > 0 {
			out = append(out, a)
		}
	}
	return out
}

// Count is the number of experiments Expand produces.
func (s Sweep) Count() int {
	count := 1
	for _, a := range s.axes() {
		count *= a.n
	}
	return count
}

// Expand returns the cartesian product of the sweep applied to base. With no
// ranges it returns base alone.
func (s Sweep) Expand(base Experiment) []Experiment {
	axes := s.axes()
	out := make([]Experiment, 0, s.Count())
	idx := make([]int, len(axes))
	for {
		e := base
		for i, a := range axes {
			a.set(&e, idx[i])
		}
		out = append(out, e)

		k := len(axes) - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] < axes[k].n {
				break
			}
			idx[k] = 0
		}
		if k < 0 {
			return out
		}
	}
}
