package agmarknet

import (
	"context"
	"strings"
)

// Selector addresses a page element.
type Selector struct {
	css string
}

// ByID selects the element with the given id.
func ByID(id string) Selector {
	return Selector{css: "#" + id}
}

// ByClass selects the first element carrying every given class.
func ByClass(classes ...string) Selector {
	return Selector{css: "." + strings.Join(classes, ".")}
}

// ByCSS selects with an arbitrary CSS query.
func ByCSS(query string) Selector {
	return Selector{css: query}
}

// CSS returns the selector as a CSS query.
func (s Selector) CSS() string {
	return s.css
}

func (s Selector) String() string {
	return s.css
}

// Browser is one browser-automation session. Implementations report a wait
// that runs out as *ElementNotPresentError and a missing dropdown label as
// *OptionNotFoundError.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// WaitPresent blocks until sel is in the DOM or ctx expires.
	WaitPresent(ctx context.Context, sel Selector) error
	// SelectByLabel picks the option whose visible text equals label.
	SelectByLabel(ctx context.Context, sel Selector, label string) error
	// SetValue writes value straight into the element, bypassing any widget.
	SetValue(ctx context.Context, sel Selector, value string) error
	Click(ctx context.Context, sel Selector) error
	// ClickIfPresent clicks sel when it exists and reports whether it did.
	ClickIfPresent(ctx context.Context, sel Selector) (bool, error)
	// HTML returns the full rendered markup of the current page.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// SessionFactory starts a fresh Browser session.
type SessionFactory func(ctx context.Context) (Browser, error)
