package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// maxFormNumberAttempts bounds how often Create regenerates a form number
// that a concurrent create took first.
const maxFormNumberAttempts = 3

// NextFormNumber proposes the next number of the current year's series,
// PREFIX-YYYY/N.
func (s *Service) NextFormNumber(ctx context.Context) (string, error) {
	return s.nextFormNumber(ctx, s.db, s.policy.RentalPolicy().FormPrefix)
}

func (s *Service) nextFormNumber(ctx context.Context, tx *gorm.DB, prefix string) (string, error) {
	series := fmt.Sprintf("%s-%d/", strings.TrimSpace(prefix), s.clock.Now().Year())
	numbers, err := s.repo.ListFormNumbers(ctx, tx, series)
	if err != nil {
		return "", err
	}
	last := 0
	for _, number := range numbers {
		n, err := strconv.Atoi(strings.TrimPrefix(number, series))
		if err != nil {
			continue
		}
		if n > last {
			last = n
		}
	}
	return fmt.Sprintf("%s%d", series, last+1), nil
}
