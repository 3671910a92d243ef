// Package session orchestrates one widget conversation: it relays events to
// the flow service, applies interpreted outcomes to the transcript, and runs
// the lead-creation side effects against the CRM.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/topproz/leadchat/internal/crm"
	"github.com/topproz/leadchat/internal/extract"
	"github.com/topproz/leadchat/internal/flowapi"
	"github.com/topproz/leadchat/internal/interpreter"
	"github.com/topproz/leadchat/internal/leads"
	"github.com/topproz/leadchat/internal/observability/metrics"
	"github.com/topproz/leadchat/internal/transcript"
	"github.com/topproz/leadchat/pkg/logging"
)

var (
	// ErrEmptyMessage rejects a send with no text and no pending uploads.
	ErrEmptyMessage = errors.New("session: empty message")

	// ErrNoMethodSelected means a booking was triggered before the caller
	// chose between booking and quoting.
	ErrNoMethodSelected = errors.New("session: no booking method selected")

	// ErrNoProSelected means a booking was triggered before any pro button
	// click supplied a pro profile.
	ErrNoProSelected = errors.New("session: no pro selected")
)

// FlowClient posts conversation events to the flow service.
type FlowClient interface {
	Send(ctx context.Context, payload any, msgType, sessionID string, loggedIn bool) (*interpreter.RawReply, error)
}

// CRMClient is the slice of the CRM surface the controller drives.
type CRMClient interface {
	GetZipcodeData(ctx context.Context, zipcode string) (leads.ZipData, error)
	GetCustomerProfile(ctx context.Context, emailID string) (*leads.CustomerProfile, error)
	GetProProfile(ctx context.Context, proLoginID string) (*leads.ProProfile, error)
	GetSubCategoriesByCatCode(ctx context.Context, categoryCode string) ([]leads.SubCategory, error)
	CreateLead(ctx context.Context, lead leads.NewCustomerLead) (*leads.LeadData, error)
	CreateExistingLead(ctx context.Context, lead leads.ExistingCustomerLead) (*leads.LeadData, error)
	DirectBookingCustomer(ctx context.Context, lead leads.DirectBookingLead) (*crm.LeadResult, error)
	MatchingProsForLead(ctx context.Context, payload leads.MatchingProsPayload) error
	UploadFiles(ctx context.Context, files map[string][]byte, order []string) ([]string, error)
}

// Update is what one controller operation produced: the turns appended to the
// transcript plus the presentation state the widget should render.
type Update struct {
	SessionID      string                `json:"sessionId"`
	Turns          []transcript.ChatTurn `json:"turns,omitempty"`
	Buttons        []transcript.Button   `json:"buttons,omitempty"`
	ShowButtons    bool                  `json:"showButtons"`
	DynamicButtons bool                  `json:"dynamicButtons"`
	InputMode      interpreter.InputMode `json:"inputMode"`
	LeadInfo       *transcript.LeadInfo  `json:"leadInfo,omitempty"`
	PendingInput   string                `json:"pendingInput,omitempty"`
}

// Config wires a controller's dependencies.
type Config struct {
	Flow     FlowClient
	CRM      CRMClient
	Store    *transcript.Store
	Identity Identity
	Logger   *logging.Logger
	Metrics  *metrics.ChatMetrics
	Now      func() time.Time
}

// Controller owns one session. All exported methods are safe for concurrent
// use; the in-memory session is authoritative and the Redis store is a
// best-effort mirror.
type Controller struct {
	mu       sync.Mutex
	session  *transcript.Session
	flow     FlowClient
	crm      CRMClient
	store    *transcript.Store
	identity Identity
	logger   *logging.Logger
	metrics  *metrics.ChatMetrics
	now      func() time.Time

	buttons        []transcript.Button
	showButtons    bool
	dynamicButtons bool
	inputMode      interpreter.InputMode

	proTask        *ProfileTask
	selectedDate   *time.Time
	selectedTime   *time.Time
	uploadedImages []string
	uploadedVideos []string
}

// NewController creates a controller with a fresh session.
func NewController(cfg Config) *Controller {
	c := &Controller{
		session:   transcript.NewSession(),
		flow:      cfg.Flow,
		crm:       cfg.CRM,
		store:     cfg.Store,
		identity:  cfg.Identity,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		inputMode: interpreter.InputModeNone,
	}
	if c.identity == nil {
		c.identity = Anonymous{}
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// SessionID returns the current session identifier.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// History returns a copy of the transcript so far.
func (c *Controller) History() []transcript.ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	turns := make([]transcript.ChatTurn, len(c.session.Turns))
	copy(turns, c.session.Turns)
	return turns
}

// Start opens the conversation by greeting the flow service.
func (c *Controller) Start(ctx context.Context) (*Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundTrip(ctx, "Hi", flowapi.TypeMessage, nil)
}

// AcceptTerms records the caller's consent and unlocks sending.
func (c *Controller) AcceptTerms(ctx context.Context) *Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.AcceptedTerms = true
	update := &Update{SessionID: c.session.ID}
	c.appendTurn(ctx, transcript.ChatTurn{Sender: transcript.SenderSystem, Text: "Terms and conditions accepted."}, update)
	c.applyPresentation(update)
	return update
}

// SendText relays typed text. An empty text with pending uploads becomes an
// image turn labeled with the file counts.
func (c *Controller) SendText(ctx context.Context, text string) (*Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.AcceptedTerms {
		return nil, leads.ErrTermsNotAccepted
	}

	text = strings.TrimSpace(text)
	turn := transcript.ChatTurn{Sender: transcript.SenderUser, Text: text}
	if text == "" {
		if len(c.uploadedImages)+len(c.uploadedVideos) == 0 {
			return nil, ErrEmptyMessage
		}
		turn.Text = c.fileCountLabel()
		turn.Images = append([]string(nil), c.uploadedImages...)
	}

	return c.roundTrip(ctx, turn.Text, flowapi.TypeMessage, &turn)
}

// ClickButton relays a button click. A button carrying a pro login action
// starts the pro-profile fetch that a later booking will wait on.
func (c *Controller) ClickButton(ctx context.Context, button transcript.Button) (*Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.AcceptedTerms {
		return nil, leads.ErrTermsNotAccepted
	}

	if button.Action != "" {
		c.proTask = c.fetchProProfile(ctx, button.Action)
	}

	var payload any = button.Label
	if button.Request != nil {
		payload = button.Request
	}

	turn := transcript.ChatTurn{Sender: transcript.SenderUser, Text: button.Label}
	return c.roundTrip(ctx, payload, flowapi.TypeButton, &turn)
}

// SelectDate records a booking date and relays it as a message. Dates before
// today are rejected.
func (c *Controller) SelectDate(ctx context.Context, date time.Time) (*Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.AcceptedTerms {
		return nil, leads.ErrTermsNotAccepted
	}

	now := c.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return nil, leads.ErrPastBookingTime
	}

	c.selectedDate = &date
	text := date.Format("1/2/2006")
	turn := transcript.ChatTurn{Sender: transcript.SenderUser, Text: text}
	return c.roundTrip(ctx, text, flowapi.TypeMessage, &turn)
}

// SelectTime records a booking time and relays it as a message. Combined with
// the selected date it must not be in the past.
func (c *Controller) SelectTime(ctx context.Context, at time.Time) (*Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.AcceptedTerms {
		return nil, leads.ErrTermsNotAccepted
	}

	if c.selectedDate != nil {
		d := *c.selectedDate
		combined := time.Date(d.Year(), d.Month(), d.Day(), at.Hour(), at.Minute(), at.Second(), 0, d.Location())
		if combined.Before(c.now()) {
			return nil, leads.ErrPastBookingTime
		}
	}

	c.selectedTime = &at
	text := at.Format("3:04:05 PM")
	turn := transcript.ChatTurn{Sender: transcript.SenderUser, Text: text}
	return c.roundTrip(ctx, text, flowapi.TypeMessage, &turn)
}

// UploadFiles pushes attachments to the CRM file host and tracks the hosted
// URLs for the eventual lead payload. Video files are tracked separately and
// never attached to image turns.
func (c *Controller) UploadFiles(ctx context.Context, files map[string][]byte, order []string) (*Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	urls, err := c.crm.UploadFiles(ctx, files, order)
	if err != nil {
		return nil, fmt.Errorf("session: upload files: %w", err)
	}

	for _, url := range urls {
		if strings.HasSuffix(url, ".mp4") || strings.HasSuffix(url, ".avi") {
			c.uploadedVideos = append(c.uploadedVideos, url)
		} else {
			c.uploadedImages = append(c.uploadedImages, url)
		}
	}

	return &Update{SessionID: c.session.ID, PendingInput: c.fileCountLabel(), InputMode: c.inputMode}, nil
}

// Reset abandons the conversation: the transcript mirror is dropped and a
// fresh session with a new identifier begins.
func (c *Controller) Reset(ctx context.Context) (*Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Reset(ctx, c.session.ID); err != nil {
		c.logger.Warn("transcript mirror reset failed", "session_id", c.session.ID, "error", err)
	}

	c.session.Reset()
	c.buttons = nil
	c.showButtons = false
	c.dynamicButtons = false
	c.inputMode = interpreter.InputModeNone
	c.proTask = nil
	c.selectedDate = nil
	c.selectedTime = nil
	c.uploadedImages = nil
	c.uploadedVideos = nil

	return &Update{SessionID: c.session.ID, InputMode: interpreter.InputModeNone}, nil
}

func (c *Controller) fileCountLabel() string {
	return fmt.Sprintf("%d Images, %d Videos", len(c.uploadedImages), len(c.uploadedVideos))
}

// roundTrip appends the outgoing turn, posts the event, and applies the reply.
// Callers hold the mutex.
func (c *Controller) roundTrip(ctx context.Context, payload any, msgType string, userTurn *transcript.ChatTurn) (*Update, error) {
	update := &Update{SessionID: c.session.ID}
	if userTurn != nil {
		c.appendTurn(ctx, *userTurn, update)
	}

	start := c.now()
	reply, err := c.flow.Send(ctx, payload, msgType, c.session.ID, c.identity.IsLoggedIn())
	c.metrics.ObserveFlowLatency(msgType, time.Since(start).Seconds())
	if err != nil {
		return update, fmt.Errorf("session: flow round trip: %w", err)
	}

	return c.handleReply(ctx, reply, update)
}

// handleReply interprets a reply, applies its turns and presentation, and
// runs any lead-creation triggers synchronously.
func (c *Controller) handleReply(ctx context.Context, reply *interpreter.RawReply, update *Update) (*Update, error) {
	outcome := interpreter.Interpret(*reply, c.session.Turns)
	c.metrics.ObserveReply(string(outcome.Mode))

	if outcome.ServiceContext != nil {
		c.session.ServiceContext = outcome.ServiceContext
	}

	for _, turn := range outcome.Turns {
		c.appendTurn(ctx, turn, update)
	}
	for _, turn := range outcome.Deferred {
		c.session.Defer(turn)
	}

	c.buttons = outcome.Buttons
	c.showButtons = outcome.ShowButtons
	c.dynamicButtons = outcome.DynamicButtons
	c.inputMode = outcome.InputMode

	for _, trigger := range outcome.Triggers {
		if err := c.runTrigger(ctx, trigger, update); err != nil {
			c.applyPresentation(update)
			return update, err
		}
	}

	c.applyPresentation(update)
	return update, nil
}

func (c *Controller) applyPresentation(update *Update) {
	update.Buttons = c.buttons
	update.ShowButtons = c.showButtons
	update.DynamicButtons = c.dynamicButtons
	update.InputMode = c.inputMode
}

func (c *Controller) appendTurn(ctx context.Context, turn transcript.ChatTurn, update *Update) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = c.now().UTC()
	}
	c.session.Append(turn)
	if err := c.store.Append(ctx, c.session.ID, turn); err != nil {
		c.logger.Warn("transcript mirror append failed", "session_id", c.session.ID, "error", err)
	}
	update.Turns = append(update.Turns, turn)
}

func (c *Controller) runTrigger(ctx context.Context, trigger interpreter.Trigger, update *Update) error {
	switch trigger {
	case interpreter.TriggerCreateNewLead:
		return c.createNewCustomerLead(ctx, update)
	case interpreter.TriggerProfileLead:
		return c.profileLead(ctx, update)
	case interpreter.TriggerBookOrQuote:
		return c.bookOrQuote(ctx, update)
	default:
		c.logger.Warn("unknown trigger", "trigger", string(trigger))
		return nil
	}
}

// profileLead resolves a logged-in caller's stored profile and submits the
// existing-customer lead, falling back to the new-customer flow when the CRM
// holds no record for them.
func (c *Controller) profileLead(ctx context.Context, update *Update) error {
	if !c.identity.IsLoggedIn() {
		return nil
	}

	profile, err := c.crm.GetCustomerProfile(ctx, c.identity.EmailID())
	if errors.Is(err, crm.ErrNotFound) {
		c.logger.Info("no stored profile, falling back to new-customer lead", "email", c.identity.EmailID())
		return c.createNewCustomerLead(ctx, update)
	}
	if err != nil {
		c.metrics.ObserveLead("existing_customer", "error")
		return fmt.Errorf("session: fetch customer profile: %w", err)
	}
	return c.createExistingLead(ctx, profile, update)
}

func (c *Controller) createNewCustomerLead(ctx context.Context, update *Update) error {
	turns := c.session.Turns
	fields := extract.Customer(turns)

	zip, err := c.crm.GetZipcodeData(ctx, fields.ServiceZip)
	if err != nil {
		c.metrics.ObserveLead("new_customer", "error")
		return fmt.Errorf("session: zipcode lookup: %w", err)
	}

	lead := leads.BuildNewCustomerLead(leads.NewCustomerInput{
		Fields:        fields,
		Zip:           zip,
		Questions:     extract.Questions(turns),
		SourceType:    extract.DetermineSourceType(turns),
		AcceptedTerms: c.session.AcceptedTerms,
		Images:        extract.Images(turns),
		Service:       c.session.ServiceContext,
	})

	data, err := c.crm.CreateLead(ctx, lead)
	if err != nil {
		c.metrics.ObserveLead("new_customer", "error")
		return fmt.Errorf("session: create lead: %w", err)
	}

	c.metrics.ObserveLead("new_customer", "ok")
	c.finishLead(ctx, update, data.LeadID, data.TodayTime)
	c.notifyMatchingPros(data, data.ID)
	return nil
}

func (c *Controller) createExistingLead(ctx context.Context, profile *leads.CustomerProfile, update *Update) error {
	turns := c.session.Turns

	zip, err := c.crm.GetZipcodeData(ctx, extract.ZipCode(turns))
	if err != nil {
		c.metrics.ObserveLead("existing_customer", "error")
		return fmt.Errorf("session: zipcode lookup: %w", err)
	}

	lead := leads.BuildExistingCustomerLead(leads.ExistingCustomerInput{
		Profile:       *profile,
		LoginID:       c.identity.LoginID(),
		StreetAddress: extract.StreetAddress(turns),
		Zip:           zip,
		Questions:     extract.Questions(turns),
		SourceType:    extract.DetermineSourceType(turns),
		AcceptedTerms: c.session.AcceptedTerms,
		Images:        extract.Images(turns),
		Service:       c.session.ServiceContext,
	})

	data, err := c.crm.CreateExistingLead(ctx, lead)
	if err != nil {
		c.metrics.ObserveLead("existing_customer", "error")
		return fmt.Errorf("session: create existing lead: %w", err)
	}

	c.metrics.ObserveLead("existing_customer", "ok")
	c.finishLead(ctx, update, data.LeadID, data.TodayTime)
	c.notifyMatchingPros(data, profile.ID)
	return nil
}

// bookOrQuote submits the direct-booking or quote lead for the pro the caller
// selected. The price lookup happens here, before the payload is built, so a
// booking never races an unresolved price.
func (c *Controller) bookOrQuote(ctx context.Context, update *Update) error {
	turns := c.session.Turns

	method := extract.SelectedMethod(turns)
	if method == "" {
		return ErrNoMethodSelected
	}
	svc := c.session.ServiceContext
	if svc == nil {
		return leads.ErrMissingServiceContext
	}

	var price float64
	subs, err := c.crm.GetSubCategoriesByCatCode(ctx, svc.CategoryCode)
	if err != nil {
		c.logger.Warn("subcategory lookup failed", "category_code", svc.CategoryCode, "error", err)
	} else {
		var ok bool
		if price, ok = leads.ResolvePrice(subs, svc.CategoryCode, svc.SubCategoryCode); !ok {
			c.logger.Warn("no booking price for subcategory", "category_code", svc.CategoryCode, "subcategory_code", svc.SubCategoryCode)
		}
	}

	if c.proTask == nil {
		return ErrNoProSelected
	}
	pro, err := c.proTask.Wait(ctx)
	if err != nil {
		c.metrics.ObserveLead(bookingKind(method), "error")
		return fmt.Errorf("session: fetch pro profile: %w", err)
	}

	customer, err := c.bookingCustomer(ctx)
	if err != nil {
		c.metrics.ObserveLead(bookingKind(method), "error")
		return err
	}

	lead := leads.BuildDirectBookingLead(leads.DirectBookingInput{
		Method:        method,
		Customer:      customer,
		Pro:           *pro,
		Service:       svc,
		BookingDate:   c.selectedDate,
		BookingTime:   c.selectedTime,
		Price:         price,
		Images:        c.uploadedImages,
		AcceptedTerms: c.session.AcceptedTerms,
		Now:           c.now(),
	})

	result, err := c.crm.DirectBookingCustomer(ctx, lead)
	if err != nil {
		c.metrics.ObserveLead(bookingKind(method), "error")
		return fmt.Errorf("session: direct booking: %w", err)
	}

	c.metrics.ObserveLead(bookingKind(method), "ok")
	c.finishLead(ctx, update, result.LeadID, result.CreatedAt)
	return nil
}

// bookingCustomer assembles the caller identity for a direct booking from the
// stored profile when one exists, otherwise from the transcript.
func (c *Controller) bookingCustomer(ctx context.Context) (leads.BookingCustomer, error) {
	if c.identity.IsLoggedIn() {
		profile, err := c.crm.GetCustomerProfile(ctx, c.identity.EmailID())
		if err == nil {
			billing := profile.CustomerBillingAddress
			return leads.BookingCustomer{
				FirstName:    billing.FirstName,
				LastName:     billing.LastName,
				MobileNumber: billing.PhoneNumber,
				EmailID:      billing.EmailID,
				ServiceAddress: leads.Address{
					StreetAddress: billing.Address,
					City:          billing.City,
					State:         billing.State,
					Zipcode:       billing.ZipCode,
				},
				IsUserNotExist: false,
			}, nil
		}
		if !errors.Is(err, crm.ErrNotFound) {
			return leads.BookingCustomer{}, fmt.Errorf("session: fetch customer profile: %w", err)
		}
	}

	turns := c.session.Turns
	fields := extract.Customer(turns)
	customer := leads.BookingCustomer{
		FirstName:    fields.FirstName,
		LastName:     fields.LastName,
		MobileNumber: fields.Mobile,
		EmailID:      fields.Email,
		ServiceAddress: leads.Address{
			StreetAddress: extract.StreetAddress(turns),
			Zipcode:       extract.ZipCode(turns),
		},
		IsUserNotExist: true,
	}

	if customer.ServiceAddress.Zipcode != "" {
		zip, err := c.crm.GetZipcodeData(ctx, customer.ServiceAddress.Zipcode)
		if err != nil {
			c.logger.Warn("zipcode lookup failed", "zipcode", customer.ServiceAddress.Zipcode, "error", err)
		} else {
			customer.ServiceAddress.City = zip.City
			customer.ServiceAddress.State = zip.State
			customer.ServiceAddress.Zipcode = zip.Zipcode
		}
	}
	return customer, nil
}

func bookingKind(method string) string {
	if method == leads.MethodBookAPro {
		return "direct_booking"
	}
	return "quote"
}

// finishLead appends the lead-confirmation system turn and releases the
// deferred closing messages behind it.
func (c *Controller) finishLead(ctx context.Context, update *Update, leadID, createdAt string) {
	info := &transcript.LeadInfo{LeadID: leadID, CreatedAt: createdAt}
	c.appendTurn(ctx, transcript.ChatTurn{Sender: transcript.SenderSystem, LeadInfo: info}, update)

	deferred := c.session.Deferred
	c.session.Deferred = nil
	for _, turn := range deferred {
		c.appendTurn(ctx, turn, update)
	}
	update.LeadInfo = info
}

// notifyMatchingPros fires the matching-pros notification in the background.
// The lead already exists, so failures are logged, not surfaced.
func (c *Controller) notifyMatchingPros(data *leads.LeadData, customerRecordID string) {
	if c.session.ServiceContext == nil {
		return
	}
	payload := leads.BuildMatchingProsPayload(*data, customerRecordID, *c.session.ServiceContext, c.now())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.crm.MatchingProsForLead(ctx, payload); err != nil {
			c.logger.Error("matching pros notification failed", "lead_id", payload.LeadID, "error", err)
		}
	}()
}

// fetchProProfile starts the background profile fetch for a clicked pro
// button. The returned task outlives the click request's context.
func (c *Controller) fetchProProfile(ctx context.Context, proLoginID string) *ProfileTask {
	task := newProfileTask()
	fetchCtx := context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(fetchCtx, 30*time.Second)
		defer cancel()
		profile, err := c.crm.GetProProfile(ctx, proLoginID)
		if err != nil {
			c.logger.Error("pro profile fetch failed", "pro_login_id", proLoginID, "error", err)
		}
		task.complete(profile, err)
	}()
	return task
}
