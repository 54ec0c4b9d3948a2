package billing

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/sparkline-ai/chat-backend/internal/models"
)

// Webhook event types consumed by the subscription state machine.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.payment_succeeded"
	EventInvoiceFailed       = "invoice.payment_failed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is the provider's webhook envelope, already signature-verified at
// the HTTP boundary.
type Event struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID           string            `json:"id"`
			Customer     string            `json:"customer"`
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ProviderAPI is the slice of the billing provider the service needs.
// *Client implements it.
type ProviderAPI interface {
	CreateCustomer(ctx context.Context, email string, userID uint64) (*Customer, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error)
}

type Service struct {
	db       *gorm.DB
	provider ProviderAPI

	proPriceID string
	successURL string
	cancelURL  string
}

func NewService(db *gorm.DB, provider ProviderAPI, proPriceID, successURL, cancelURL string) *Service {
	return &Service{
		db:         db,
		provider:   provider,
		proPriceID: proPriceID,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateProCheckout creates (or reuses) the provider customer for the user
// and returns a hosted checkout URL for the pro plan.
func (s *Service) CreateProCheckout(ctx context.Context, user *models.User) (string, error) {
	sub, err := s.getByUserID(ctx, user.ID)
	if err != nil {
		return "", err
	}

	var customerID string
	if sub != nil && sub.CustomerID != nil {
		customerID = *sub.CustomerID
	} else {
		cust, err := s.provider.CreateCustomer(ctx, user.MobileNumber+"@example.com", user.ID)
		if err != nil {
			return "", err
		}
		customerID = cust.ID
		if sub == nil {
			sub = &Subscription{UserID: user.ID, Tier: models.TierBasic, Status: StatusInactive}
		}
		sub.CustomerID = &customerID
		if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
			return "", err
		}
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    s.proPriceID,
		Mode:       "subscription",
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
		Metadata:   map[string]string{"user_id": strconv.FormatUint(user.ID, 10)},
	})
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// Status returns the user's subscription row, or nil when none exists.
func (s *Service) Status(ctx context.Context, userID uint64) (*Subscription, error) {
	return s.getByUserID(ctx, userID)
}

// HandleEvent applies one verified webhook event to the subscription (and
// the owning user's tier). Unknown event types are ignored.
func (s *Service) HandleEvent(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, ev)
	case EventInvoicePaid:
		return s.handleInvoicePaid(ctx, ev)
	case EventInvoiceFailed, EventSubscriptionDeleted:
		return s.handleDeactivation(ctx, ev)
	default:
		log.Printf("billing: ignored webhook event type=%s", ev.Type)
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, ev *Event) error {
	obj := ev.Data.Object
	if obj.Subscription == "" || obj.Metadata["user_id"] == "" {
		return nil
	}
	userID, err := strconv.ParseUint(obj.Metadata["user_id"], 10, 64)
	if err != nil {
		return nil
	}

	sub, err := s.getByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil {
		sub = &Subscription{UserID: userID}
	}
	sub.CustomerID = strPtr(obj.Customer)
	sub.SubscriptionID = strPtr(obj.Subscription)
	sub.Tier = models.TierPro
	sub.Status = StatusActive
	if end, ok := s.lookupPeriodEnd(ctx, obj.Subscription); ok {
		sub.CurrentPeriodEnd = &end
	}
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return err
	}
	return s.setUserTier(ctx, userID, models.TierPro)
}

func (s *Service) handleInvoicePaid(ctx context.Context, ev *Event) error {
	subID := ev.Data.Object.Subscription
	if subID == "" {
		return nil
	}
	sub, err := s.getByProviderSubID(ctx, subID)
	if err != nil || sub == nil {
		return err
	}
	sub.Status = StatusActive
	if end, ok := s.lookupPeriodEnd(ctx, subID); ok {
		sub.CurrentPeriodEnd = &end
	}
	return s.db.WithContext(ctx).Save(sub).Error
}

func (s *Service) handleDeactivation(ctx context.Context, ev *Event) error {
	subID := ev.Data.Object.Subscription
	if subID == "" {
		subID = ev.Data.Object.ID
	}
	if subID == "" {
		return nil
	}
	sub, err := s.getByProviderSubID(ctx, subID)
	if err != nil || sub == nil {
		return err
	}
	sub.Status = StatusInactive
	sub.Tier = models.TierBasic
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return err
	}
	return s.setUserTier(ctx, sub.UserID, models.TierBasic)
}

func (s *Service) lookupPeriodEnd(ctx context.Context, subID string) (time.Time, bool) {
	ps, err := s.provider.GetSubscription(ctx, subID)
	if err != nil || ps.CurrentPeriodEnd == 0 {
		// period end is informational; the event itself still applies
		return time.Time{}, false
	}
	return time.Unix(ps.CurrentPeriodEnd, 0).UTC(), true
}

func (s *Service) setUserTier(ctx context.Context, userID uint64, tier models.Tier) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("tier", tier).Error
}

func (s *Service) getByUserID(ctx context.Context, userID uint64) (*Subscription, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Service) getByProviderSubID(ctx context.Context, subID string) (*Subscription, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).Where("subscription_id = ?", subID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
