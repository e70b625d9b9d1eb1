package server

import (
	"context"
	"fmt"

	"github.com/mathcards/grinddeck-server/internal/game"
	"github.com/mathcards/grinddeck-server/internal/game/rules"
)

// Command names shared by the HTTP routes and the websocket channel.
const (
	cmdDraw           = "draw"
	cmdPlayNumber     = "play_number"
	cmdPlayConstant   = "play_constant"
	cmdPlayArithmetic = "play_arithmetic"
	cmdPlayFunction   = "play_function"
	cmdPlayVariable   = "play_variable"
	cmdSelect         = "select"
	cmdDeselect       = "deselect"
	cmdSetTarget      = "set_target"
	cmdApplyAlgebra   = "apply_algebra"
	cmdEnd            = "end"
)

// commandRequest carries the arguments of a game command.
type commandRequest struct {
	CardID       string           `json:"card_id,omitempty"`
	SecondCardID string           `json:"second_card_id,omitempty"`
	Target       rules.TargetDeck `json:"target,omitempty"`
}

// playCommands maps the {kind} of /play/{kind} to a command.
var playCommands = map[string]string{
	"number":     cmdPlayNumber,
	"constant":   cmdPlayConstant,
	"arithmetic": cmdPlayArithmetic,
	"function":   cmdPlayFunction,
	"variable":   cmdPlayVariable,
}

func needsCard(name string) bool {
	switch name {
	case cmdPlayNumber, cmdPlayConstant, cmdPlayArithmetic, cmdPlayFunction, cmdPlayVariable, cmdSelect:
		return true
	}
	return false
}

// dispatch runs one command against e.
func dispatch(ctx context.Context, e *game.Engine, name string, req commandRequest) error {
	if needsCard(name) && req.CardID == "" {
		return fmt.Errorf("%s: card_id is required: %w", name, errBadRequest)
	}

	switch name {
	case cmdDraw:
		return e.DrawCard(ctx)
	case cmdPlayNumber:
		return e.PlayNumberCard(ctx, req.CardID)
	case cmdPlayConstant:
		return e.PlayConstantCard(ctx, req.CardID)
	case cmdPlayArithmetic:
		return e.PlayArithmeticCard(ctx, req.CardID, req.SecondCardID)
	case cmdPlayFunction:
		return e.PlayFunctionCard(ctx, req.CardID, req.SecondCardID)
	case cmdPlayVariable:
		return e.PlayVariableCard(ctx, req.CardID)
	case cmdSelect:
		return e.Select(ctx, req.CardID)
	case cmdDeselect:
		return e.Deselect(ctx)
	case cmdSetTarget:
		target, ok := rules.ParseTargetDeck(string(req.Target))
		if !ok {
			return fmt.Errorf("unknown target deck %q: %w", req.Target, errBadRequest)
		}
		return e.SetActiveTargetDeck(ctx, target)
	case cmdApplyAlgebra:
		return e.ApplyAlgebraFunction(ctx)
	case cmdEnd:
		return e.EndGame(ctx)
	default:
		return fmt.Errorf("unknown command %q: %w", name, errBadRequest)
	}
}
