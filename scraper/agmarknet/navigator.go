package agmarknet

import (
	"context"
	"fmt"
	"time"

	"agmark-sync/models"
	"agmark-sync/utils"
)

// Element ids of the SearchCmmMkt.aspx form.
const (
	commodityDropdownID = "ddlCommodity"
	stateDropdownID     = "ddlState"
	dateFieldID         = "txtDate"
	submitButtonID      = "btnGo"
	marketDropdownID    = "ddlMarket"
	resultsGridID       = "cphBody_GridPriceData"
)

// popupClose is the close button of the splash popup shown on first load.
var popupClose = ByCSS(".popup-onload .close")

// State is a step of the form run.
type State int

const (
	StateStart State = iota
	StateCommoditySet
	StateStateSet
	StateDateSet
	StateFirstSubmitted
	StateMarketOptionsLoaded
	StateMarketSet
	StateSecondSubmitted
	StateResultsLoaded
	StateFailed
)

var stateNames = [...]string{
	"Start",
	"CommoditySet",
	"StateSet",
	"DateSet",
	"FirstSubmitted",
	"MarketOptionsLoaded",
	"MarketSet",
	"SecondSubmitted",
	"ResultsLoaded",
	"Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// step is one forward transition: wait for an element, then act on the page.
type step struct {
	to   State
	wait Selector
	act  func(ctx context.Context, b Browser) error
}

// Navigator drives the portal's dependent-dropdown form to the results view.
type Navigator struct {
	portalURL string
	timeout   time.Duration
	open      SessionFactory
	logger    *utils.Logger

	// OnTransition, when set, observes every state change including Failed.
	OnTransition func(from, to State)
}

// NewNavigator creates a Navigator. timeout bounds every element wait.
func NewNavigator(portalURL string, timeout time.Duration, open SessionFactory, logger *utils.Logger) *Navigator {
	return &Navigator{
		portalURL: portalURL,
		timeout:   timeout,
		open:      open,
		logger:    logger,
	}
}

// Navigate fills and submits the form for req and returns the rendered
// markup of the results page. The browser session is closed before
// Navigate returns, whatever the outcome.
func (n *Navigator) Navigate(ctx context.Context, req models.ScrapeRequest) (string, error) {
	browser, err := n.open(ctx)
	if err != nil {
		n.transition(StateStart, StateFailed)
		return "", &NavigationError{Reached: StateStart, Err: fmt.Errorf("open session: %w", err)}
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			n.logger.Warn("[navigator] Closing browser session: %v", cerr)
		}
	}()

	state := StateStart
	if err := browser.Navigate(ctx, n.portalURL); err != nil {
		n.transition(state, StateFailed)
		return "", &NavigationError{Reached: state, Err: fmt.Errorf("navigate %s: %w", n.portalURL, err)}
	}
	n.dismissPopup(ctx, browser)

	var html string
	for _, st := range n.steps(req, &html) {
		if err := n.advance(ctx, browser, st); err != nil {
			n.transition(state, StateFailed)
			return "", &NavigationError{Reached: state, Err: err}
		}
		n.transition(state, st.to)
		state = st.to
	}

	return html, nil
}

func (n *Navigator) steps(req models.ScrapeRequest, html *string) []step {
	commodity := ByID(commodityDropdownID)
	state := ByID(stateDropdownID)
	date := ByID(dateFieldID)
	submit := ByID(submitButtonID)
	market := ByID(marketDropdownID)
	results := ByID(resultsGridID)

	return []step{
		{to: StateCommoditySet, wait: commodity, act: func(ctx context.Context, b Browser) error {
			return b.SelectByLabel(ctx, commodity, req.Commodity)
		}},
		{to: StateStateSet, wait: state, act: func(ctx context.Context, b Browser) error {
			return b.SelectByLabel(ctx, state, req.State)
		}},
		{to: StateDateSet, wait: date, act: func(ctx context.Context, b Browser) error {
			return b.SetValue(ctx, date, req.DateText())
		}},
		{to: StateFirstSubmitted, wait: submit, act: func(ctx context.Context, b Browser) error {
			return b.Click(ctx, submit)
		}},
		{to: StateMarketOptionsLoaded, wait: market},
		{to: StateMarketSet, wait: market, act: func(ctx context.Context, b Browser) error {
			return b.SelectByLabel(ctx, market, req.Market)
		}},
		{to: StateSecondSubmitted, wait: submit, act: func(ctx context.Context, b Browser) error {
			return b.Click(ctx, submit)
		}},
		{to: StateResultsLoaded, wait: results, act: func(ctx context.Context, b Browser) error {
			markup, err := b.HTML(ctx)
			if err != nil {
				return fmt.Errorf("read results markup: %w", err)
			}
			*html = markup
			return nil
		}},
	}
}

// advance waits for the step's element under the element timeout, then acts
// under the same bound.
func (n *Navigator) advance(ctx context.Context, b Browser, st step) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := b.WaitPresent(ctx, st.wait); err != nil {
		return fmt.Errorf("%s: wait for %s: %w", st.to, st.wait, err)
	}
	if st.act == nil {
		return nil
	}
	if err := st.act(ctx, b); err != nil {
		return fmt.Errorf("%s: %w", st.to, err)
	}
	return nil
}

// dismissPopup closes the splash popup if there is one. It never fails the run.
func (n *Navigator) dismissPopup(ctx context.Context, b Browser) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	closed, err := b.ClickIfPresent(ctx, popupClose)
	switch {
	case err != nil:
		n.logger.Debug("[navigator] Popup dismissal failed, continuing: %v", err)
	case closed:
		n.logger.Debug("[navigator] Popup closed")
	default:
		n.logger.Debug("[navigator] Popup not found, skipping")
	}
}

func (n *Navigator) transition(from, to State) {
	n.logger.Debug("[navigator] %s -> %s", from, to)
	if n.OnTransition != nil {
		n.OnTransition(from, to)
	}
}
