package display

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/models"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		kind entity.Kind
		e    models.Entity
		want View
	}{
		{"inactive", entity.Wall, models.Entity{Status: "inactive"}, View{Mode: Inactive}},
		{"countdown beats inactive", entity.Wall, models.Entity{Status: "inactive", CountdownActive: true}, View{Mode: Countdown}},
		{"countdown beats stale live", entity.Poll, models.Entity{Status: "live", CountdownActive: true}, View{Mode: Countdown}},
		{"countdown beats closed", entity.Poll, models.Entity{Status: "closed", CountdownActive: true}, View{Mode: Countdown}},
		{"live single default", entity.Wall, models.Entity{Status: "live"}, View{Mode: Live, Layout: LayoutSingle}},
		{"live single", entity.Wall, models.Entity{Status: "live", LayoutType: "Single Highlight Post"}, View{Mode: Live, Layout: LayoutSingle}},
		{"live 2x2", entity.Wall, models.Entity{Status: "live", LayoutType: "2 Column × 2 Row"}, View{Mode: Live, Layout: LayoutGrid2x2}},
		{"live 4x2", entity.Wall, models.Entity{Status: "live", LayoutType: "4 Column × 2 Row"}, View{Mode: Live, Layout: LayoutGrid4x2}},
		{"poll horizontal", entity.Poll, models.Entity{Status: "live"}, View{Mode: Live, Layout: LayoutHorizontal}},
		{"poll vertical", entity.Poll, models.Entity{Status: "live", Layout: "vertical"}, View{Mode: Live, Layout: LayoutVertical}},
		{"poll closed overlay", entity.Poll, models.Entity{Status: "closed", Layout: "vertical"}, View{Mode: Closed, Layout: LayoutVertical, ClosingOverlay: true}},
		{"wall closed is inactive", entity.Wall, models.Entity{Status: "closed"}, View{Mode: Inactive}},
		{"wheel live", entity.PrizeWheel, models.Entity{Status: "live"}, View{Mode: Live, Layout: LayoutWheel}},
		{"unknown status", entity.Wall, models.Entity{Status: "paused"}, View{Mode: Inactive}},
		{"empty status", entity.PrizeWheel, models.Entity{}, View{Mode: Inactive}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.kind, tt.e))
		})
	}
}
