package game

import "rps_arena/internal/domain"

// Decide returns the round outcome for player1's move against player2's move.
// Rock beats scissors, paper beats rock, scissors beat paper, equal moves draw.
func Decide(move1, move2 domain.Move) domain.Outcome {
	if move1 == move2 {
		return domain.OutcomeDraw
	}

	switch move1 {
	case domain.MoveRock:
		if move2 == domain.MoveScissors {
			return domain.OutcomePlayer1
		}
	case domain.MovePaper:
		if move2 == domain.MoveRock {
			return domain.OutcomePlayer1
		}
	case domain.MoveScissors:
		if move2 == domain.MovePaper {
			return domain.OutcomePlayer1
		}
	}

	return domain.OutcomePlayer2
}

// forfeitOutcome awards the round to whichever side acted; nobody acting is a draw.
// Both acting is not a forfeit and yields OutcomeNone.
func forfeitOutcome(acted1, acted2 bool) domain.Outcome {
	switch {
	case acted1 && acted2:
		return domain.OutcomeNone
	case acted1:
		return domain.OutcomePlayer1
	case acted2:
		return domain.OutcomePlayer2
	default:
		return domain.OutcomeDraw
	}
}
