package session

import (
	"context"

	"github.com/spec-kit/onboarding-portal/internal/domain"
)

// OnboardingStore owns the wizard progress.
type OnboardingStore struct {
	cell *cell[domain.OnboardingProgress]
}

// NewOnboardingStore binds an onboarding store to storage without hydrating it.
func NewOnboardingStore(storage Storage) *OnboardingStore {
	return &OnboardingStore{cell: newCell(storage, SlotOnboarding, domain.NewOnboardingProgress)}
}

func (s *OnboardingStore) Progress() domain.OnboardingProgress {
	return s.cell.get()
}

func (s *OnboardingStore) SetBusinessID(ctx context.Context, id string) error {
	return s.cell.update(ctx, func(p *domain.OnboardingProgress) { p.BusinessID = ref(id) })
}

func (s *OnboardingStore) SetEmail(ctx context.Context, email string) error {
	return s.cell.update(ctx, func(p *domain.OnboardingProgress) { p.Email = ref(email) })
}

func (s *OnboardingStore) SetCurrentStep(ctx context.Context, step int) error {
	if step < domain.StepDetails {
		step = domain.StepDetails
	}
	return s.cell.update(ctx, func(p *domain.OnboardingProgress) { p.CurrentStep = step })
}

// ClearOnboarding forgets the wizard and resets the step to the first one.
func (s *OnboardingStore) ClearOnboarding(ctx context.Context) error {
	return s.cell.clear(ctx)
}
