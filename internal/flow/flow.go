// Package flow implements the ParkEasy conversation engine.
//
// The engine receives inbound WhatsApp messages, resolves the sender to a
// role (super-admin, owner, attendant or unregistered guest), restores any
// conversation state left over from their previous message, and routes the
// text to the matching handler. Handlers reply through the messaging service
// and persist flow progress through the state manager, so a flow survives
// process restarts mid-conversation.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/parkeasy/parkeasy/internal/genai"
	"github.com/parkeasy/parkeasy/internal/messaging"
	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/render"
	"github.com/parkeasy/parkeasy/internal/store"
	"github.com/parkeasy/parkeasy/internal/util"
)

// websiteURL is shown to prospective customers in the lead-capture flow.
const websiteURL = "https://parkeasyai.in"

const internalErrorText = "An internal server error occurred. Our team has been notified."

// Opts holds configuration options for the conversation engine.
type Opts struct {
	// AdminPhone is the super-admin WhatsApp number in canonical digit form.
	AdminPhone string
	// ConversationTTL resets saved states older than this to idle before
	// routing. Zero disables the guard.
	ConversationTTL time.Duration
}

// Option defines a configuration option for the conversation engine.
type Option func(*Opts)

// WithAdminPhone sets the super-admin WhatsApp number.
func WithAdminPhone(phone string) Option {
	return func(o *Opts) {
		o.AdminPhone = phone
	}
}

// WithConversationTTL sets the maximum age of a saved conversation state.
func WithConversationTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.ConversationTTL = ttl
	}
}

// Engine routes inbound messages to conversation handlers.
type Engine struct {
	store      store.Store
	messenger  messaging.Service
	classifier genai.Classifier
	renderer   render.Renderer
	states     *StateManager
	locks      *userLocks
	adminPhone string
	convTTL    time.Duration
	loc        *time.Location

	mu      sync.Mutex
	pending map[string]models.Interactive
}

// NewEngine creates a conversation engine. The admin phone falls back to the
// ADMIN_PHONE_NUMBER environment variable; when unset the super-admin surface
// is disabled. A nil renderer disables receipt and e-pass images.
func NewEngine(st store.Store, messenger messaging.Service, classifier genai.Classifier, renderer render.Renderer, opts ...Option) (*Engine, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AdminPhone == "" {
		cfg.AdminPhone = os.Getenv("ADMIN_PHONE_NUMBER")
	}
	adminPhone := ""
	if cfg.AdminPhone != "" {
		canonical, ok := util.NormalizePhoneNumber(cfg.AdminPhone)
		if !ok {
			return nil, fmt.Errorf("invalid admin phone number %q", cfg.AdminPhone)
		}
		adminPhone = canonical
	}
	if st == nil || messenger == nil || classifier == nil {
		return nil, fmt.Errorf("store, messenger and classifier must be provided")
	}
	if renderer == nil {
		renderer = render.NoopRenderer{}
	}
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		slog.Warn("Engine falling back to UTC for display times", "error", err)
		loc = time.UTC
	}
	slog.Debug("Engine config loaded", "admin_phone_set", adminPhone != "", "conversation_ttl", cfg.ConversationTTL)
	return &Engine{
		store:      st,
		messenger:  messenger,
		classifier: classifier,
		renderer:   renderer,
		states:     NewStateManager(st),
		locks:      newUserLocks(),
		adminPhone: adminPhone,
		convTTL:    cfg.ConversationTTL,
		loc:        loc,
		pending:    make(map[string]models.Interactive),
	}, nil
}

// Run consumes inbound messages from the messaging service until the context
// is cancelled or the channel closes. Messages from different senders are
// handled concurrently; messages from the same sender serialize on the
// per-user lock inside HandleMessage.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-e.messenger.Responses():
			if !ok {
				return
			}
			go func(m models.InboundMessage) {
				_ = e.HandleMessage(ctx, m)
			}(msg)
		}
	}
}

// HandleMessage processes one inbound message end to end. Errors are logged
// and answered with a generic apology so the sender is never left hanging.
func (e *Engine) HandleMessage(ctx context.Context, msg models.InboundMessage) error {
	from := msg.From
	if canonical, ok := util.NormalizePhoneNumber(from); ok {
		from = canonical
	}
	text := strings.TrimSpace(msg.Body)
	if text == "" {
		return nil
	}

	unlock := e.locks.Lock(from)
	defer unlock()

	if err := e.route(ctx, from, text); err != nil {
		slog.Error("Engine HandleMessage failed", "error", err, "from", from)
		if sendErr := e.messenger.SendMessage(ctx, from, internalErrorText); sendErr != nil {
			slog.Error("Engine error reply failed", "error", sendErr, "from", from)
		}
		return err
	}
	return nil
}

func (e *Engine) route(ctx context.Context, from, text string) error {
	if e.adminPhone != "" && from == e.adminPhone {
		return e.handleAdminMessage(ctx, from, text)
	}

	user, err := e.store.ResolveUser(ctx, from)
	if err != nil {
		return err
	}
	if user == nil {
		return e.handleUnregistered(ctx, from, text)
	}
	return e.handleRegistered(ctx, from, user, text)
}

// handleRegistered runs the pipeline shared by owners and attendants: state
// restore, subscription enforcement, the universal cancel, then either the
// in-flow handler for the saved state or the idle command router.
func (e *Engine) handleRegistered(ctx context.Context, from string, user *models.User, text string) error {
	updatedAt, err := e.states.Load(ctx, user)
	if err != nil {
		return err
	}
	if e.convTTL > 0 && user.State != models.StateIdle && time.Since(updatedAt) > e.convTTL {
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		if err := e.send(ctx, from, "⏳ Your previous action timed out and was cancelled."); err != nil {
			return err
		}
	}

	// A saved state whose context lost its variant would nil-panic the
	// handler. Treat it like any other corrupt row: reset and inform.
	if err := user.Context.ValidateFor(user.State); err != nil {
		slog.Error("Engine loaded corrupt conversation state", "error", err, "userKey", userKey(user), "state", user.State)
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, "Something went wrong, I'm resetting our conversation. Please start again.")
	}

	if !user.SubscriptionActive(time.Now()) {
		return e.send(ctx, from, "❌ Your ParkEasy subscription has expired. Please contact support to continue service.")
	}

	if strings.EqualFold(text, "cancel") {
		if user.State != models.StateIdle {
			if err := e.states.Clear(ctx, user); err != nil {
				return err
			}
		}
		return e.send(ctx, from, "✅ Action cancelled. You can start again.")
	}

	text = e.resolveMenuReply(userKey(user), user.State, text)

	if user.State != models.StateIdle {
		return e.dispatchState(ctx, from, user, text)
	}
	return e.handleIdleCommand(ctx, from, user, text)
}

// dispatchState routes a message to the handler for the user's saved state.
// An unknown state in the database is treated as corruption and reset.
func (e *Engine) dispatchState(ctx context.Context, from string, user *models.User, text string) error {
	switch user.State {
	case models.StateAwaitingCustomerNumber:
		return e.handleCustomerNumberInput(ctx, from, user, text)
	case models.StateAwaitingPaymentType:
		return e.handlePaymentTypeSelection(ctx, from, user, text)
	case models.StateAwaitingParkingConfirmation:
		return e.handleParkingConfirmation(ctx, from, user, text)
	case models.StateAwaitingReceiptNumber:
		return e.handleReceiptCustomerNumber(ctx, from, user, text)
	case models.StateAwaitingCheckoutConfirmation:
		return e.handleCheckoutConfirmation(ctx, from, user, text)
	case models.StateAwaitingExitConfirmation:
		return e.handleExitConfirmation(ctx, from, user, text)
	case models.StateAwaitingListCheckout:
		return e.handleListCheckout(ctx, from, user, text)
	case models.StateAwaitingPassTypeSelection:
		return e.handlePassTypeSelection(ctx, from, user, text)
	case models.StateAwaitingPassCustomerNum:
		return e.handlePassCustomerNumber(ctx, from, user, text)
	case models.StateAwaitingPassPayment:
		return e.handlePassFinalConfirmation(ctx, from, user, text)
	case models.StateAwaitingRemovalConfirmation:
		if user.Role != models.RoleOwner {
			if err := e.states.Clear(ctx, user); err != nil {
				return err
			}
			return e.send(ctx, from, "Invalid action.")
		}
		return e.handleRemovalConfirmation(ctx, from, user, text)
	default:
		slog.Error("Engine dispatchState found unknown state", "state", user.State, "userKey", userKey(user))
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, "Something went wrong, I'm resetting our conversation. Please start again.")
	}
}

// handleIdleCommand routes a message with no flow in progress. Cheap literal
// commands are matched before the classifier is consulted.
func (e *Engine) handleIdleCommand(ctx context.Context, from string, user *models.User, text string) error {
	upper := strings.ToUpper(strings.TrimSpace(text))

	if upper == "LIST" || upper == "LIST VEHICLES" {
		return e.listVehicles(ctx, from, user)
	}
	if upper == "STATUS" {
		return e.sendStatus(ctx, from, user)
	}

	stripped := strings.ReplaceAll(upper, " ", "")
	if util.IsValidVehicleNumber(stripped) {
		return e.startVehicleEntry(ctx, from, user, stripped)
	}

	if upper == "OUT" || strings.HasPrefix(upper, "OUT ") {
		return e.handleOutCommand(ctx, from, user, text)
	}
	if upper == "PASS" || strings.HasPrefix(upper, "PASS ") {
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return e.send(ctx, from, "Please specify a vehicle number. Example: `pass GJ01AB1234`")
		}
		return e.startPassCreation(ctx, from, user, fields[1])
	}

	result, err := e.classifier.ClassifyIntent(ctx, user.Role, text)
	if err != nil {
		slog.Warn("Engine intent classification failed, using fallback", "error", err, "from", from)
		result = models.FallbackIntent(text)
	}
	return e.dispatchIntent(ctx, from, user, text, result)
}

// handleOutCommand parses checkout identifiers from an `out ...` command.
// Identifiers are everything after the keyword, joined and comma-split, so
// "out GJ01 AB 1234" and "out 1,2,3" both work.
func (e *Engine) handleOutCommand(ctx context.Context, from string, user *models.User, text string) error {
	fields := strings.Fields(text)
	joined := ""
	if len(fields) > 1 {
		joined = strings.Join(fields[1:], "")
	}
	var identifiers []string
	for _, part := range strings.Split(joined, ",") {
		if part != "" {
			identifiers = append(identifiers, part)
		}
	}
	if len(identifiers) == 0 {
		return e.send(ctx, from, "Please specify a vehicle or list number. Example: `out 2`")
	}
	if len(identifiers) > 1 {
		if user.Role == models.RoleOwner {
			return e.bulkCheckout(ctx, from, user, identifiers)
		}
		return e.send(ctx, from, "Please check out one vehicle at a time for the button flow.")
	}
	return e.startVehicleExit(ctx, from, user, identifiers[0])
}

// dispatchIntent executes a classified intent, enforcing the owner-only
// command surface for attendants.
func (e *Engine) dispatchIntent(ctx context.Context, from string, user *models.User, original string, result models.IntentResult) error {
	if result.Intent.OwnerOnly() && user.Role != models.RoleOwner {
		return e.send(ctx, from, "I'm sorry, that command is for owners only.")
	}
	if result.Intent.AdminOnly() {
		return e.handleFallback(ctx, from, user, original)
	}

	switch result.Intent {
	case models.IntentVehicleCheckIn:
		return e.startVehicleEntry(ctx, from, user, result.VehicleNumber)
	case models.IntentVehicleCheckout:
		identifiers := result.Identifiers
		if len(identifiers) == 0 && result.Identifier != "" {
			identifiers = []string{result.Identifier}
		}
		if len(identifiers) == 0 {
			return e.send(ctx, from, "Please specify a vehicle or list number. Example: `out 2`")
		}
		if len(identifiers) > 1 {
			if user.Role == models.RoleOwner {
				return e.bulkCheckout(ctx, from, user, identifiers)
			}
			return e.send(ctx, from, "Please check out one vehicle at a time for the button flow.")
		}
		return e.startVehicleExit(ctx, from, user, identifiers[0])
	case models.IntentGetStatus:
		return e.sendStatus(ctx, from, user)
	case models.IntentListVehicles:
		return e.listVehicles(ctx, from, user)
	case models.IntentShowMenu:
		return e.showMenu(ctx, from, user)
	case models.IntentGetHelp:
		return e.sendHelp(ctx, from, user, result.Language)

	case models.IntentAddPass:
		return e.ownerAddPass(ctx, from, user, result)
	case models.IntentRemovePass:
		return e.ownerRemovePass(ctx, from, user, result, original)
	case models.IntentViewPasses:
		return e.ownerViewPasses(ctx, from, user)
	case models.IntentAddAttendant:
		return e.ownerAddAttendant(ctx, from, user, result)
	case models.IntentRemoveAttendant, models.IntentManageAttendant:
		return e.ownerManageAttendant(ctx, from, user, result)
	case models.IntentListAttendants:
		return e.ownerListAttendants(ctx, from, user, result)
	case models.IntentActivateAttendant:
		return e.ownerActivateAttendant(ctx, from, user, result)
	case models.IntentGetReport:
		return e.ownerReport(ctx, from, user, result)
	case models.IntentSetPricingModel:
		return e.ownerSetPricingModel(ctx, from, user, result)
	case models.IntentSetTieredRate:
		return e.ownerSetTieredRate(ctx, from, user, result)
	case models.IntentSetFlatRate:
		return e.ownerSetFlatRate(ctx, from, user, result)
	case models.IntentSetPassRate:
		return e.ownerSetPassRate(ctx, from, user, result)
	case models.IntentViewRates:
		return e.ownerViewRates(ctx, from, user)

	default:
		return e.handleFallback(ctx, from, user, original)
	}
}

// handleFallback gives unrecognized input one last chance as a vehicle
// number before admitting defeat.
func (e *Engine) handleFallback(ctx context.Context, from string, user *models.User, text string) error {
	stripped := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(text)), " ", "")
	if util.IsValidVehicleNumber(stripped) {
		return e.startVehicleEntry(ctx, from, user, stripped)
	}
	if user.Role == models.RoleOwner {
		if err := e.send(ctx, from, "I'm sorry, I didn't understand. Here are some options:"); err != nil {
			return err
		}
		return e.showMenu(ctx, from, user)
	}
	return e.send(ctx, from, fmt.Sprintf("❌ Invalid command or vehicle number format (%q).\n\nPlease try again with the correct format (e.g., `GJ05RT1234`) or type `menu`.", text))
}

func (e *Engine) sendHelp(ctx context.Context, from string, user *models.User, language string) error {
	help, err := e.classifier.HelpMessage(ctx, user.Role, language)
	if err != nil {
		slog.Warn("Engine help generation failed", "error", err, "from", from)
		return e.send(ctx, from, "I'm sorry, I couldn't fetch help right now. Type `menu` to see your options.")
	}
	return e.send(ctx, from, help)
}

// send delivers a plain text reply.
func (e *Engine) send(ctx context.Context, to, body string) error {
	if err := e.messenger.SendMessage(ctx, to, body); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	return nil
}

// sendMenu delivers a menu and remembers it so a numeric reply can be
// resolved back to the chosen option's title.
func (e *Engine) sendMenu(ctx context.Context, to, key string, menu models.Interactive) error {
	e.mu.Lock()
	e.pending[key] = menu
	e.mu.Unlock()
	if err := e.messenger.SendInteractive(ctx, to, menu); err != nil {
		return fmt.Errorf("failed to send menu to %s: %w", to, err)
	}
	return nil
}

// resolveMenuReply maps a bare number back to the title of that option on
// the menu last sent to the user. List-checkout replies are exempt because
// there a bare number selects a parked vehicle, not a menu option.
func (e *Engine) resolveMenuReply(key string, state models.ConvState, text string) string {
	if state == models.StateAwaitingListCheckout {
		return text
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return text
	}
	e.mu.Lock()
	menu, ok := e.pending[key]
	e.mu.Unlock()
	if !ok {
		return text
	}
	if title, ok := menu.OptionTitle(n); ok {
		return title
	}
	return text
}

// lotAndTiers loads a lot's pricing configuration in one call.
func (e *Engine) lotAndTiers(ctx context.Context, lotID int64) (models.ParkingLot, []models.RateTier, error) {
	lot, err := e.store.GetLot(ctx, lotID)
	if err != nil {
		return models.ParkingLot{}, nil, err
	}
	if lot == nil {
		return models.ParkingLot{}, nil, fmt.Errorf("lot %d not found", lotID)
	}
	tiers, err := e.store.GetRateTiers(ctx, lotID)
	if err != nil {
		return models.ParkingLot{}, nil, err
	}
	return *lot, tiers, nil
}

func (e *Engine) formatTime(t time.Time) string {
	return t.In(e.loc).Format("3:04 PM")
}

func (e *Engine) formatDate(t time.Time) string {
	return t.In(e.loc).Format("2 January 2006")
}
