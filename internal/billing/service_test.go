package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sparkline-ai/chat-backend/internal/models"
)

type fakeProvider struct {
	customers int
	periodEnd int64
	subErr    error

	lastCheckout CheckoutParams
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, email string, userID uint64) (*Customer, error) {
	_ = ctx
	_ = email
	_ = userID
	f.customers++
	return &Customer{ID: "cus_test"}, nil
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	_ = ctx
	f.lastCheckout = params
	return &CheckoutSession{ID: "cs_test", URL: "https://pay.example.com/cs_test"}, nil
}

func (f *fakeProvider) GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	_ = ctx
	if f.subErr != nil {
		return nil, f.subErr
	}
	return &ProviderSubscription{ID: id, Status: StatusActive, CurrentPeriodEnd: f.periodEnd}, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &Subscription{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, mobile string) *models.User {
	t.Helper()
	u := models.User{MobileNumber: mobile, Tier: models.TierBasic}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func eventJSON(t *testing.T, typ, customer, subscription string, userID uint64) *Event {
	t.Helper()
	raw := map[string]any{
		"type": typ,
		"data": map[string]any{
			"object": map[string]any{
				"id":           "evt_obj",
				"customer":     customer,
				"subscription": subscription,
			},
		},
	}
	if userID != 0 {
		raw["data"].(map[string]any)["object"].(map[string]any)["metadata"] =
			map[string]string{"user_id": strconv.FormatUint(userID, 10)}
	}
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(b, &ev))
	return &ev
}

func TestCreateProCheckout_CreatesCustomerOnce(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{}
	svc := NewService(db, prov, "price_pro", "https://ok", "https://no")

	user := seedUser(t, db, "+14155552001")

	url, err := svc.CreateProCheckout(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/cs_test", url)
	assert.Equal(t, "price_pro", prov.lastCheckout.PriceID)
	assert.Equal(t, "subscription", prov.lastCheckout.Mode)

	// second checkout reuses the stored customer
	_, err = svc.CreateProCheckout(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 1, prov.customers)
}

func TestHandleEvent_CheckoutCompletedPromotesUser(t *testing.T) {
	db := openTestDB(t)
	end := time.Now().Add(30 * 24 * time.Hour).Unix()
	prov := &fakeProvider{periodEnd: end}
	svc := NewService(db, prov, "price_pro", "", "")

	user := seedUser(t, db, "+14155552002")

	ev := eventJSON(t, EventCheckoutCompleted, "cus_test", "sub_123", user.ID)
	require.NoError(t, svc.HandleEvent(context.Background(), ev))

	sub, err := svc.Status(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.TierPro, sub.Tier)
	assert.Equal(t, StatusActive, sub.Status)
	require.NotNil(t, sub.SubscriptionID)
	assert.Equal(t, "sub_123", *sub.SubscriptionID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, end, sub.CurrentPeriodEnd.Unix())

	var refreshed models.User
	require.NoError(t, db.First(&refreshed, user.ID).Error)
	assert.Equal(t, models.TierPro, refreshed.Tier)
}

func TestHandleEvent_InvoiceFailedDemotesUser(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{}
	svc := NewService(db, prov, "price_pro", "", "")

	user := seedUser(t, db, "+14155552003")

	require.NoError(t, svc.HandleEvent(context.Background(),
		eventJSON(t, EventCheckoutCompleted, "cus_test", "sub_456", user.ID)))

	require.NoError(t, svc.HandleEvent(context.Background(),
		eventJSON(t, EventInvoiceFailed, "cus_test", "sub_456", 0)))

	sub, err := svc.Status(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.TierBasic, sub.Tier)
	assert.Equal(t, StatusInactive, sub.Status)

	var refreshed models.User
	require.NoError(t, db.First(&refreshed, user.ID).Error)
	assert.Equal(t, models.TierBasic, refreshed.Tier)
}

func TestHandleEvent_PeriodEndLookupFailureIsNonFatal(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{subErr: errors.New("provider down")}
	svc := NewService(db, prov, "price_pro", "", "")

	user := seedUser(t, db, "+14155552004")

	ev := eventJSON(t, EventCheckoutCompleted, "cus_test", "sub_789", user.ID)
	require.NoError(t, svc.HandleEvent(context.Background(), ev))

	sub, err := svc.Status(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.TierPro, sub.Tier)
	assert.Nil(t, sub.CurrentPeriodEnd)
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, &fakeProvider{}, "price_pro", "", "")

	ev := eventJSON(t, "payment_intent.created", "cus_x", "sub_x", 0)
	assert.NoError(t, svc.HandleEvent(context.Background(), ev))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"type":"invoice.payment_succeeded"}`)

	header := SignPayload(secret, "1700000000", body)
	assert.True(t, VerifySignature(secret, body, header))

	assert.False(t, VerifySignature(secret, []byte(`{"tampered":true}`), header))
	assert.False(t, VerifySignature("other-secret", body, header))
	assert.False(t, VerifySignature(secret, body, ""))
	assert.False(t, VerifySignature(secret, body, "t=1700000000"))
	assert.False(t, VerifySignature(secret, body, "v1=deadbeef"))
}
