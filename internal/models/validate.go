package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the tier's field constraints.
func (p PrizeTier) Validate() error {
	return validate.Struct(p)
}

// Validate checks every field constraint plus cross-tier ones validator tags cannot express.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	seen := make(map[int]bool, len(s.Prizes))
	for _, p := range s.Prizes {
		if seen[p.ID] {
			return fmt.Errorf("duplicate prize id %d", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Validate checks the person has an id and a name.
func (p Person) Validate() error {
	return validate.Struct(p)
}
