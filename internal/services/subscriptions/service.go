package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/subsavvy/subsavvy/internal/billing"
	domain "github.com/subsavvy/subsavvy/internal/domain/subscription"
	"github.com/subsavvy/subsavvy/internal/lib/civil"
	"github.com/subsavvy/subsavvy/internal/reminder"
)

type Repository interface {
	CreateSubscription(ctx context.Context, sub domain.Subscription) (domain.Subscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (domain.Subscription, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, input domain.UpdateInput) (domain.Subscription, error)
	DeleteSubscription(ctx context.Context, id uuid.UUID) error
	ListSubscriptions(ctx context.Context, filter domain.ListFilter) ([]domain.Subscription, error)
	MarkPaid(ctx context.Context, id uuid.UUID, advance func(domain.Subscription) (civil.Date, error)) (domain.Subscription, error)
}

// DefaultReminderHorizonDays bounds the reminders listing when the caller
// does not pass an explicit horizon.
const DefaultReminderHorizonDays = 14

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func New(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger.WithGroup("subscriptions_service")}
}

// Create schedules the first due date one full cycle after the anchor date
// the user entered and persists the record with it.
func (s *Service) Create(ctx context.Context, input domain.CreateInput) (domain.Subscription, error) {
	if err := input.Validate(); err != nil {
		s.logger.WarnContext(ctx, "rejected create input", slog.Any("error", err))
		return domain.Subscription{}, err
	}

	next, err := billing.ScheduleFirstPayment(input.FirstPayment, input.BillingCycle)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	s.logger.InfoContext(ctx, "creating subscription",
		slog.String("name", input.Name),
		slog.String("billing_cycle", input.BillingCycle.String()),
		slog.String("next_payment", next.String()))

	sub, err := s.repo.CreateSubscription(ctx, domain.Subscription{
		Name:         input.Name,
		Cost:         input.Cost,
		Category:     input.Category,
		BillingCycle: input.BillingCycle,
		NextPayment:  next,
		Notes:        input.Notes,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create subscription", slog.String("name", input.Name), slog.Any("error", err))
		return domain.Subscription{}, err
	}

	return sub, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "subscription not found", slog.String("subscription_id", id.String()))
		} else {
			s.logger.ErrorContext(ctx, "failed to get subscription", slog.String("subscription_id", id.String()), slog.Any("error", err))
		}
		return domain.Subscription{}, err
	}

	return sub, nil
}

// Update applies an edit. The stored due date and cycle are loaded first so
// the new due date can be resolved against them: an unchanged cycle takes
// the submitted date verbatim, a changed cycle re-anchors one unit of the
// new cycle after the old due date. Resolution and persistence happen
// within this one call, so no record is ever stored with a cycle that
// disagrees with its due date.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input domain.UpdateInput) (domain.Subscription, error) {
	if err := input.Validate(); err != nil {
		s.logger.WarnContext(ctx, "rejected update input", slog.String("subscription_id", id.String()), slog.Any("error", err))
		return domain.Subscription{}, err
	}

	existing, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "subscription not found", slog.String("subscription_id", id.String()))
		} else {
			s.logger.ErrorContext(ctx, "failed to load subscription for update", slog.String("subscription_id", id.String()), slog.Any("error", err))
		}
		return domain.Subscription{}, err
	}

	next, err := billing.ResolveOnEdit(existing.BillingCycle, existing.NextPayment, input.BillingCycle, input.NextPayment)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	input.NextPayment = next

	s.logger.InfoContext(ctx, "updating subscription",
		slog.String("subscription_id", id.String()),
		slog.String("billing_cycle", input.BillingCycle.String()),
		slog.String("next_payment", next.String()))

	sub, err := s.repo.UpdateSubscription(ctx, id, input)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update subscription", slog.String("subscription_id", id.String()), slog.Any("error", err))
		return domain.Subscription{}, err
	}

	return sub, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	s.logger.InfoContext(ctx, "deleting subscription", slog.String("subscription_id", id.String()))

	if err := s.repo.DeleteSubscription(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "subscription not found", slog.String("subscription_id", id.String()))
		} else {
			s.logger.ErrorContext(ctx, "failed to delete subscription", slog.String("subscription_id", id.String()), slog.Any("error", err))
		}
		return err
	}

	return nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Subscription, error) {
	subs, err := s.repo.ListSubscriptions(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list subscriptions", slog.Any("error", err))
		return nil, err
	}

	return subs, nil
}

// MarkPaid records one payment and rolls the due date one cycle forward.
// A due date still in the future cannot be paid: that would double-advance
// the schedule for a single physical payment. The repository serializes the
// read-advance-write per subscription id.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, today civil.Date) (domain.Subscription, error) {
	if !today.IsValid() {
		return domain.Subscription{}, fmt.Errorf("%w: today is not a valid calendar date", domain.ErrInvalidInput)
	}

	s.logger.InfoContext(ctx, "marking subscription paid", slog.String("subscription_id", id.String()))

	sub, err := s.repo.MarkPaid(ctx, id, func(current domain.Subscription) (civil.Date, error) {
		if current.NextPayment.After(today) {
			return civil.Date{}, fmt.Errorf("%w: cannot mark a future payment as paid", domain.ErrPreconditionFailed)
		}

		next, err := billing.AdvanceOnPayment(current.NextPayment, current.BillingCycle)
		if err != nil {
			return civil.Date{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}

		return next, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.logger.WarnContext(ctx, "subscription not found", slog.String("subscription_id", id.String()))
		case errors.Is(err, domain.ErrPreconditionFailed):
			s.logger.WarnContext(ctx, "refused to pay future subscription", slog.String("subscription_id", id.String()))
		default:
			s.logger.ErrorContext(ctx, "failed to mark subscription paid", slog.String("subscription_id", id.String()), slog.Any("error", err))
		}
		return domain.Subscription{}, err
	}

	s.logger.InfoContext(ctx, "subscription paid",
		slog.String("subscription_id", id.String()),
		slog.String("next_payment", sub.NextPayment.String()))

	return sub, nil
}

// Reminder pairs a subscription with its urgency classification for display.
type Reminder struct {
	Subscription   domain.Subscription
	Classification reminder.Classification
}

// Reminders lists subscriptions due within horizonDays of today, ordered by
// due date ascending, each classified against today.
func (s *Service) Reminders(ctx context.Context, today civil.Date, horizonDays int) ([]Reminder, error) {
	if !today.IsValid() {
		return nil, fmt.Errorf("%w: today is not a valid calendar date", domain.ErrInvalidInput)
	}
	if horizonDays <= 0 {
		horizonDays = DefaultReminderHorizonDays
	}

	dueBefore := today.AddDays(horizonDays)
	subs, err := s.repo.ListSubscriptions(ctx, domain.ListFilter{DueBefore: &dueBefore})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list subscriptions for reminders", slog.Any("error", err))
		return nil, err
	}

	domain.SortByNextPayment(subs)

	reminders := make([]Reminder, 0, len(subs))
	for _, sub := range subs {
		cls, err := reminder.Classify(sub.NextPayment, today)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to classify subscription",
				slog.String("subscription_id", sub.ID.String()), slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}

		reminders = append(reminders, Reminder{Subscription: sub, Classification: cls})
	}

	return reminders, nil
}
