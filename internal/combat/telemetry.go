package combat

import (
	"context"

	"hexclash/server/logging"
	loggingcombat "hexclash/server/logging/combat"
)

// TelemetryConfig captures the dependencies required to publish clash
// telemetry from the combat package.
type TelemetryConfig struct {
	Publisher    logging.Publisher
	LookupEntity func(id int64) logging.EntityRef
	CurrentTurn  func() uint64
}

// NewClashRecorder returns a hook that publishes a clash summary and, when
// damage landed, a damage event. It returns nil without a publisher.
func NewClashRecorder(cfg TelemetryConfig) func(ctx context.Context, result ClashResult, targetHealth float64) {
	if cfg.Publisher == nil {
		return nil
	}
	lookup := cfg.LookupEntity
	if lookup == nil {
		lookup = func(int64) logging.EntityRef { return logging.EntityRef{} }
	}
	turn := cfg.CurrentTurn
	if turn == nil {
		turn = func() uint64 { return 0 }
	}

	return func(ctx context.Context, result ClashResult, targetHealth float64) {
		attacker := lookup(result.Attacker())
		defender := lookup(result.Defender())
		damage := result.FinalDamage()

		payload := loggingcombat.ClashPayload{
			Ability: result.Sequence.Ability,
			Mode:    string(result.Mode),
			Outcome: string(result.Outcome),
			Damage:  damage,
			Strikes: len(result.Sequence.Strikes),
		}
		for _, strike := range result.Sequence.Strikes {
			switch strike.Outcome {
			case TagCrit:
				payload.Crits++
			case TagCling:
				payload.Clings++
			}
		}
		loggingcombat.Clash(ctx, cfg.Publisher, turn(), attacker, defender, payload, nil)

		if result.Reaction != nil {
			loggingcombat.Reaction(ctx, cfg.Publisher, turn(), defender, attacker, loggingcombat.ReactionPayload{
				Ability: result.Reaction.Ability,
				Success: result.Reaction.Success,
				Chance:  result.Reaction.Chance,
				Roll:    result.Reaction.Roll,
			}, nil)
		}

		if damage > 0 {
			loggingcombat.Damage(ctx, cfg.Publisher, turn(), attacker, defender, loggingcombat.DamagePayload{
				Ability:      result.Sequence.Ability,
				Amount:       damage,
				TargetHealth: targetHealth,
			}, nil)
		}
	}
}
