// Package crm is the client for the TopProz CRM REST backend: master-data
// lookups, profile fetches, lead creation, and file upload.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/topproz/leadchat/internal/leads"
	"github.com/topproz/leadchat/pkg/logging"
)

var (
	// ErrNotFound means the CRM answered successfully but holds no record for
	// the lookup key.
	ErrNotFound = errors.New("crm: record not found")

	// ErrMalformedResponse means the CRM's envelope did not report success or
	// could not be decoded.
	ErrMalformedResponse = errors.New("crm: malformed response")
)

// envelope is the CRM's standard response wrapper.
type envelope struct {
	Status int             `json:"status"`
	Result string          `json:"result"`
	Data   json.RawMessage `json:"data"`
}

func (e envelope) ok() bool {
	return e.Status == http.StatusOK && e.Result == "success"
}

// LeadResult is the identifying pair returned for every kind of created lead.
type LeadResult struct {
	LeadID    string
	CreatedAt string
}

// Client talks to the TopProz CRM. All methods decode the CRM's
// status/result envelope before touching the data payload.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a CRM client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetZipcodeData resolves a zip code to its city and state through the CRM
// zip master table.
func (c *Client) GetZipcodeData(ctx context.Context, zipcode string) (leads.ZipData, error) {
	env, err := c.get(ctx, "/master/getzipcodedata/"+zipcode)
	if err != nil {
		return leads.ZipData{}, err
	}

	var rows []leads.ZipData
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return leads.ZipData{}, fmt.Errorf("crm: decode zipcode data: %w", err)
	}
	if len(rows) == 0 {
		return leads.ZipData{}, fmt.Errorf("%w: zipcode %s", ErrNotFound, zipcode)
	}
	return rows[0], nil
}

// GetCustomerProfile fetches the stored profile for an email address.
// ErrNotFound signals a logged-in caller with no CRM record; callers fall
// back to the new-customer flow on it.
func (c *Client) GetCustomerProfile(ctx context.Context, emailID string) (*leads.CustomerProfile, error) {
	// The CRM route name carries this typo; it is part of the API.
	env, err := c.get(ctx, "/customer/getCustomerProfileDeatils/"+emailID)
	if err != nil {
		return nil, err
	}

	var profiles []leads.CustomerProfile
	if err := json.Unmarshal(env.Data, &profiles); err != nil {
		return nil, fmt.Errorf("crm: decode customer profile: %w", err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, emailID)
	}
	return &profiles[0], nil
}

// GetProProfile fetches a pro's public profile by login identifier.
func (c *Client) GetProProfile(ctx context.Context, proLoginID string) (*leads.ProProfile, error) {
	env, err := c.get(ctx, "/pro/getproprofileNoJWT/"+proLoginID)
	if err != nil {
		return nil, err
	}

	var profile leads.ProProfile
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		return nil, fmt.Errorf("crm: decode pro profile: %w", err)
	}
	return &profile, nil
}

// GetSubCategoriesByCatCode lists the subcategory master rows for a category,
// including booking prices.
func (c *Client) GetSubCategoriesByCatCode(ctx context.Context, categoryCode string) ([]leads.SubCategory, error) {
	env, err := c.get(ctx, "/master/getSubCategoriesByCatCode/"+categoryCode)
	if err != nil {
		return nil, err
	}

	var subs []leads.SubCategory
	if err := json.Unmarshal(env.Data, &subs); err != nil {
		return nil, fmt.Errorf("crm: decode subcategories: %w", err)
	}
	return subs, nil
}

// CreateLead submits a new-customer lead and returns the created LeadData.
func (c *Client) CreateLead(ctx context.Context, lead leads.NewCustomerLead) (*leads.LeadData, error) {
	return c.createLead(ctx, "/lead/createlead", lead)
}

// CreateExistingLead submits an existing-customer lead and returns the
// created LeadData.
func (c *Client) CreateExistingLead(ctx context.Context, lead leads.ExistingCustomerLead) (*leads.LeadData, error) {
	return c.createLead(ctx, "/lead/createExistlead", lead)
}

func (c *Client) createLead(ctx context.Context, path string, payload any) (*leads.LeadData, error) {
	env, err := c.post(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	var data struct {
		LeadData leads.LeadData `json:"leadData"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("crm: decode lead data: %w", err)
	}
	if data.LeadData.LeadID == "" {
		return nil, fmt.Errorf("%w: create response carries no lead id", ErrMalformedResponse)
	}

	c.logger.Info("lead created", "lead_id", data.LeadData.LeadID, "source_type", data.LeadData.SourceType)
	return &data.LeadData, nil
}

// DirectBookingCustomer submits a direct-booking or quote lead.
func (c *Client) DirectBookingCustomer(ctx context.Context, lead leads.DirectBookingLead) (*LeadResult, error) {
	env, err := c.post(ctx, "/lead/direct-booking-customer", lead)
	if err != nil {
		return nil, err
	}

	var data struct {
		DirectBookingLead struct {
			DirectBookingLeadID string `json:"directBookingLeadId"`
			CreatedOn           string `json:"createdOn"`
		} `json:"directBookingLead"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("crm: decode direct booking response: %w", err)
	}
	if data.DirectBookingLead.DirectBookingLeadID == "" {
		return nil, fmt.Errorf("%w: booking response carries no lead id", ErrMalformedResponse)
	}

	c.logger.Info("direct booking lead created", "lead_id", data.DirectBookingLead.DirectBookingLeadID)
	return &LeadResult{
		LeadID:    data.DirectBookingLead.DirectBookingLeadID,
		CreatedAt: data.DirectBookingLead.CreatedOn,
	}, nil
}

// MatchingProsForLead asks the CRM to notify pros matching a created lead.
// The lead already exists, so failures are reported but not fatal to callers.
func (c *Client) MatchingProsForLead(ctx context.Context, payload leads.MatchingProsPayload) error {
	if _, err := c.post(ctx, "/lead/matchingprosforlead", payload); err != nil {
		return err
	}
	c.logger.Info("matching pros notified", "lead_id", payload.LeadID)
	return nil
}

// UploadFiles uploads attachments under the multipart field "images" and
// returns the hosted URLs in input order.
func (c *Client) UploadFiles(ctx context.Context, files map[string][]byte, order []string) ([]string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, name := range order {
		part, err := writer.CreateFormFile("images", name)
		if err != nil {
			return nil, fmt.Errorf("crm: create form file: %w", err)
		}
		if _, err := part.Write(files[name]); err != nil {
			return nil, fmt.Errorf("crm: write form file: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("crm: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fileupload/multipleImageUploader", &buf)
	if err != nil {
		return nil, fmt.Errorf("crm: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	env, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var data struct {
		UploadedImagePath []struct {
			Location string `json:"location"`
		} `json:"uploadedImagePath"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("crm: decode upload response: %w", err)
	}

	urls := make([]string, 0, len(data.UploadedImagePath))
	for _, file := range data.UploadedImagePath {
		urls = append(urls, file.Location)
	}

	c.logger.Info("files uploaded", "count", len(urls))
	return urls, nil
}

func (c *Client) get(ctx context.Context, path string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("crm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload any) (*envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("crm: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("crm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("crm: %s returned status %d: %s", req.URL.Path, resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("crm: decode envelope: %w", err)
	}
	if !env.ok() {
		return nil, fmt.Errorf("%w: %s reported status=%d result=%q", ErrMalformedResponse, req.URL.Path, env.Status, env.Result)
	}
	return &env, nil
}
