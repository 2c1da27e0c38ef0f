// Package display maps an entity snapshot to the view a screen should render.
package display

import (
	"strings"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/models"
)

// Mode is the top-level view.
type Mode string

const (
	Inactive  Mode = "inactive"
	Countdown Mode = "countdown"
	Live      Mode = "live"
	Closed    Mode = "closed"
)

// Layout is the renderer used for Live and Closed.
type Layout string

const (
	LayoutNone       Layout = ""
	LayoutSingle     Layout = "single"
	LayoutGrid2x2    Layout = "grid2x2"
	LayoutGrid4x2    Layout = "grid4x2"
	LayoutHorizontal Layout = "horizontal"
	LayoutVertical   Layout = "vertical"
	LayoutWheel      Layout = "wheel"
)

// View is the selector's output.
type View struct {
	Mode   Mode   `json:"mode"`
	Layout Layout `json:"layout,omitempty"`
	// ClosingOverlay is set for a closed poll: the bars stay visible underneath.
	ClosingOverlay bool `json:"closing_overlay,omitempty"`
}

// Select derives the view for e. countdown_active wins over any status; an
// unrecognised status, or closed on a kind without a closed state, is Inactive.
func Select(k entity.Kind, e models.Entity) View {
	if e.CountdownActive {
		return View{Mode: Countdown}
	}
	switch e.Status {
	case models.StatusLive:
		return View{Mode: Live, Layout: LayoutFor(k, e)}
	case models.StatusClosed:
		if k.SupportsClosed {
			return View{Mode: Closed, Layout: LayoutFor(k, e), ClosingOverlay: true}
		}
	}
	return View{Mode: Inactive}
}

// LayoutFor picks the live renderer from the entity's layout settings.
func LayoutFor(k entity.Kind, e models.Entity) Layout {
	switch k.Name {
	case entity.Wall.Name:
		return wallLayout(e.LayoutType)
	case entity.Poll.Name:
		if strings.EqualFold(strings.TrimSpace(e.Layout), "vertical") {
			return LayoutVertical
		}
		return LayoutHorizontal
	case entity.PrizeWheel.Name:
		return LayoutWheel
	}
	return LayoutNone
}

// Stored layout_type values are labels from the host dashboard,
// e.g. "2 Column × 2 Row".
func wallLayout(layoutType string) Layout {
	s := strings.ToLower(layoutType)
	switch {
	case strings.HasPrefix(s, "2 column"), s == "grid2x2":
		return LayoutGrid2x2
	case strings.HasPrefix(s, "4 column"), s == "grid4x2":
		return LayoutGrid4x2
	default:
		return LayoutSingle
	}
}
