package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the external billing provider's REST API.
type Client struct {
	apiBase    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(apiBase, secretKey string) *Client {
	return &Client{
		apiBase:    apiBase,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type Customer struct {
	ID string `json:"id"`
}

type CheckoutParams struct {
	CustomerID string            `json:"customer"`
	PriceID    string            `json:"price"`
	Mode       string            `json:"mode"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ProviderSubscription is the provider's record; CurrentPeriodEnd is a unix
// timestamp.
type ProviderSubscription struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("billing: unexpected status %s on %s %s", resp.Status, method, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) CreateCustomer(ctx context.Context, email string, userID uint64) (*Customer, error) {
	var cust Customer
	err := c.do(ctx, http.MethodPost, "/customers", map[string]any{
		"email":    email,
		"metadata": map[string]string{"user_id": fmt.Sprint(userID)},
	}, &cust)
	if err != nil {
		return nil, err
	}
	return &cust, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	var sess CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", params, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	var sub ProviderSubscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+id, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
