package etl

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/BartekS5/donorsync/pkg/models"
)

// Check is one validation step. It returns a *ValidationFailure when the
// record must be rejected, or another error when the check itself could not
// run.
type Check struct {
	Name string
	Fn   func(ctx context.Context, d *models.Donation) error
}

// ValidationPipeline runs its checks in order and stops at the first one
// that fails.
type ValidationPipeline struct {
	checks []Check
}

// NewValidationPipeline returns the donation checks backed by store.
func NewValidationPipeline(store DonationStore) *ValidationPipeline {
	return &ValidationPipeline{checks: []Check{
		{Name: "address-present", Fn: requireRef(func(d *models.Donation) *int64 { return d.AddressID }, EmptyReference)},
		{Name: "address-exists", Fn: refExists(store, models.EntityAddress, func(d *models.Donation) *int64 { return d.AddressID }, DanglingReference)},
		{Name: "volunteer-present", Fn: requireRef(func(d *models.Donation) *int64 { return d.VolunteerID }, EmptyOwner)},
		{Name: "volunteer-exists", Fn: refExists(store, models.EntityVolunteer, func(d *models.Donation) *int64 { return d.VolunteerID }, InvalidOwner)},
		{Name: "complete", Fn: checkComplete},
		{Name: "positive-amount", Fn: checkAmount},
	}}
}

// NewPipelineOf builds a pipeline from an explicit list of checks.
func NewPipelineOf(checks ...Check) *ValidationPipeline {
	return &ValidationPipeline{checks: append([]Check(nil), checks...)}
}

// Checks returns the names of the checks in evaluation order.
func (p *ValidationPipeline) Checks() []string {
	names := make([]string, len(p.checks))
	for i, c := range p.checks {
		names[i] = c.Name
	}
	return names
}

// WithCheck inserts c directly after the check named after, or at the end
// when after is empty. The relative order of existing checks is kept.
func (p *ValidationPipeline) WithCheck(after string, c Check) (*ValidationPipeline, error) {
	pos := len(p.checks)
	if after != "" {
		pos = -1
		for i, existing := range p.checks {
			if existing.Name == after {
				pos = i + 1
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("no check named %q", after)
		}
	}
	checks := make([]Check, 0, len(p.checks)+1)
	checks = append(checks, p.checks[:pos]...)
	checks = append(checks, c)
	checks = append(checks, p.checks[pos:]...)
	return &ValidationPipeline{checks: checks}, nil
}

// Validate runs the checks against d.
func (p *ValidationPipeline) Validate(ctx context.Context, d *models.Donation) error {
	for _, c := range p.checks {
		if err := c.Fn(ctx, d); err != nil {
			var f *ValidationFailure
			if errors.As(err, &f) && f.Check == "" {
				f.Check = c.Name
			}
			return err
		}
	}
	return nil
}

func requireRef(ref func(*models.Donation) *int64, reason FailureReason) func(context.Context, *models.Donation) error {
	return func(_ context.Context, d *models.Donation) error {
		if id := ref(d); id == nil || *id == 0 {
			return &ValidationFailure{Reason: reason}
		}
		return nil
	}
}

func refExists(store DonationStore, entity models.Entity, ref func(*models.Donation) *int64, reason FailureReason) func(context.Context, *models.Donation) error {
	return func(ctx context.Context, d *models.Donation) error {
		id := ref(d)
		if id == nil {
			return &ValidationFailure{Reason: reason}
		}
		ok, err := store.Exists(ctx, entity, *id)
		if err != nil {
			return fmt.Errorf("checking %s %d: %w", entity, *id, classify("exists", err))
		}
		if !ok {
			return &ValidationFailure{Reason: reason}
		}
		return nil
	}
}

func checkComplete(_ context.Context, d *models.Donation) error {
	if d.ID == nil || d.FirstName == nil || d.LastName == nil || d.AddressID == nil ||
		d.Date == nil || d.Amount == nil || d.VolunteerID == nil {
		return &ValidationFailure{Reason: IncompleteRecord}
	}
	return nil
}

func checkAmount(_ context.Context, d *models.Donation) error {
	if d.Amount == nil || !(*d.Amount > 0) || math.IsInf(*d.Amount, 1) {
		return &ValidationFailure{Reason: NonPositiveAmount}
	}
	return nil
}
