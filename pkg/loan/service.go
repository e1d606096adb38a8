package loan

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking-core/pkg/bank"
	"banking-core/pkg/logging"
	"banking-core/pkg/metrics"
	"banking-core/pkg/store"
)

// DefaultAnnualRate is applied when an application omits the interest
// rate.
var DefaultAnnualRate = decimal.NewFromFloat(12.0)

// Recognized review actions.
const (
	ActionApprove = "APPROVE"
	ActionReject  = "REJECT"
)

// Service manages loan applications.
type Service struct {
	store   store.Store
	clock   bank.Clock
	logger  *logging.Logger
	metrics metrics.Collector
}

// NewService creates a loan service. clock, logger and collector may be
// nil; defaults are used.
func NewService(st store.Store, clock bank.Clock, logger *logging.Logger, collector metrics.Collector) *Service {
	if clock == nil {
		clock = bank.SystemClock()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Service{
		store:   st,
		clock:   clock,
		logger:  logger.Named("loan"),
		metrics: collector,
	}
}

// Apply creates a PENDING application for the caller. annualRate nil
// means DefaultAnnualRate. The EMI is computed here, frozen, and never
// recomputed.
func (s *Service) Apply(ctx context.Context, caller bank.Identity, loanType bank.LoanType, principal decimal.Decimal, tenureMonths int, annualRate *decimal.Decimal) (*bank.LoanApplication, error) {
	app, err := s.apply(ctx, caller, loanType, principal, tenureMonths, annualRate)
	s.metrics.RecordLoanApplication(bank.Classify(err))
	return app, err
}

func (s *Service) apply(ctx context.Context, caller bank.Identity, loanType bank.LoanType, principal decimal.Decimal, tenureMonths int, annualRate *decimal.Decimal) (*bank.LoanApplication, error) {
	if !loanType.Valid() {
		return nil, fmt.Errorf("loan type %q: %w", loanType, bank.ErrInvalidLoanType)
	}

	rate := DefaultAnnualRate
	if annualRate != nil {
		rate = *annualRate
	}

	emi, err := ComputeEMI(principal, rate, tenureMonths)
	if err != nil {
		return nil, err
	}

	app := &bank.LoanApplication{
		ID:           uuid.NewString(),
		Customer:     caller.Email,
		Type:         loanType,
		Principal:    principal,
		TenureMonths: tenureMonths,
		AnnualRate:   rate,
		EMI:          emi,
		Status:       bank.LoanPending,
		AppliedAt:    s.clock.Now(),
	}
	if err := s.store.CreateLoan(ctx, app); err != nil {
		return nil, err
	}

	s.logger.Info("loan application created",
		zap.String("loan_id", app.ID),
		zap.String("customer", app.Customer),
		zap.String("loan_type", string(app.Type)),
		zap.String("emi", app.EMI.String()),
	)
	return app, nil
}

// Review moves a PENDING application to APPROVED or REJECTED. The caller
// must hold the reviewer role; the action must be APPROVE or REJECT;
// applications that already left PENDING are rejected, so a decision is
// irreversible.
func (s *Service) Review(ctx context.Context, id, action string, reviewer bank.Identity) (*bank.LoanApplication, error) {
	app, err := s.review(ctx, id, action, reviewer)
	s.metrics.RecordLoanReview(strings.ToUpper(action), bank.Classify(err))
	return app, err
}

func (s *Service) review(ctx context.Context, id, action string, reviewer bank.Identity) (*bank.LoanApplication, error) {
	if reviewer.Role != bank.RoleReviewer {
		return nil, fmt.Errorf("role %q cannot review loans: %w", reviewer.Role, bank.ErrUnauthorized)
	}

	var target bank.LoanStatus
	switch strings.ToUpper(action) {
	case ActionApprove:
		target = bank.LoanApproved
	case ActionReject:
		target = bank.LoanRejected
	default:
		return nil, fmt.Errorf("action %q: %w", action, bank.ErrInvalidAction)
	}

	var app *bank.LoanApplication
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LoanForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.Status != bank.LoanPending {
			return fmt.Errorf("loan %s is %s: %w", id, locked.Status, bank.ErrInvalidStateTransition)
		}
		locked.Status = target
		if err := tx.SaveLoan(ctx, locked); err != nil {
			return err
		}
		app = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loan application reviewed",
		zap.String("loan_id", app.ID),
		zap.String("status", string(app.Status)),
		zap.String("reviewer", reviewer.Email),
	)
	return app, nil
}

// Get returns one application by id.
func (s *Service) Get(ctx context.Context, id string) (*bank.LoanApplication, error) {
	return s.store.GetLoan(ctx, id)
}

// List returns the caller's own applications, newest first.
func (s *Service) List(ctx context.Context, caller bank.Identity) ([]*bank.LoanApplication, error) {
	return s.store.ListLoans(ctx, caller.Email)
}
