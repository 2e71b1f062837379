package security

import (
	"fmt"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	// Scores below this (zxcvbn scale 0-4) are trivially guessable.
	minStrengthScore = 2
)

// ValidatePasswordStrength gates sign-up passwords before the credentials
// ever leave the process. User-derived inputs (email, name) are penalised as
// dictionary material.
func ValidatePasswordStrength(password string, userInputs ...string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: minimum length is %d characters", domain.ErrWeakPassword, minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: maximum length is %d characters", domain.ErrWeakPassword, maxPasswordLength)
	}

	inputs := make([]string, 0, len(userInputs))
	for _, input := range userInputs {
		if input != "" {
			inputs = append(inputs, input)
		}
	}

	result := zxcvbn.PasswordStrength(password, inputs)
	if result.Score < minStrengthScore {
		return fmt.Errorf("%w: password is too easy to guess", domain.ErrWeakPassword)
	}

	return nil
}
