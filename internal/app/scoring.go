package app

import (
	"sort"

	"quiz-session-service/internal/domain"
)

// ValidateCompleteness checks that every known question ID appears among the
// answered IDs. Order is irrelevant. Any missing ID rejects the whole
// submission; there is no partial scoring.
func ValidateCompleteness(allQuestionIDs, answeredQuestionIDs []int64) error {
	answered := make(map[int64]struct{}, len(answeredQuestionIDs))
	for _, id := range answeredQuestionIDs {
		answered[id] = struct{}{}
	}

	var missing []int64
	for _, id := range allQuestionIDs {
		if _, ok := answered[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return &domain.MissingAnswersError{Missing: missing}
	}
	return nil
}

// ValidateChoices checks each answer against the alternatives that actually
// belong to the claimed question, and rejects a question answered more than
// once. On success it returns the resolved alternatives in submission order.
func ValidateChoices(answers []domain.AnswerSubmission, alternativesByQuestion map[int64][]domain.Alternative) ([]domain.Alternative, error) {
	chosen := make([]domain.Alternative, 0, len(answers))
	seen := make(map[int64]struct{}, len(answers))

	for _, answer := range answers {
		if _, dup := seen[answer.QuestionID]; dup {
			return nil, &domain.InvalidChoiceError{QuestionID: answer.QuestionID}
		}
		seen[answer.QuestionID] = struct{}{}

		var match *domain.Alternative
		for i := range alternativesByQuestion[answer.QuestionID] {
			if alternativesByQuestion[answer.QuestionID][i].ID == answer.AlternativeID {
				match = &alternativesByQuestion[answer.QuestionID][i]
				break
			}
		}
		if match == nil {
			return nil, &domain.InvalidChoiceError{QuestionID: answer.QuestionID}
		}
		chosen = append(chosen, *match)
	}
	return chosen, nil
}

// ComputeScore sums the point values of the chosen alternatives. Plain
// integer addition, order-independent, so re-scoring the same recorded
// answers always yields the same total.
func ComputeScore(chosen []domain.Alternative) int {
	total := 0
	for _, alternative := range chosen {
		total += alternative.Points
	}
	return total
}
