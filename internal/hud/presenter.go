package hud

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"snackrun/internal/input"
	"snackrun/internal/logging"
	"snackrun/internal/track"
)

// progressStep is the granularity at which fill changes are logged.
const progressStep = 10

// Presenter reports delivery prompts through the log. It satisfies
// delivery.Presenter.
type Presenter struct {
	log      zerolog.Logger
	lastStep int
}

func NewPresenter() *Presenter {
	return &Presenter{log: logging.Component("hud"), lastStep: -1}
}

func (p *Presenter) ShowPrompt(s *track.Station) {
	p.log.Info().Str("station", s.ID).Msg("stopped at station, mash to deliver")
}

func (p *Presenter) HidePrompt() {}

// ShowProgress logs only when the fill crosses a new step.
func (p *Presenter) ShowProgress(s *track.Station, v float64) {
	step := int(math.Floor(v / progressStep))
	if step == p.lastStep {
		return
	}
	p.lastStep = step
	p.log.Info().Str("station", s.ID).Str("fill", bar(v)).Msg("delivering")
}

func (p *Presenter) HideProgress() {
	p.lastStep = -1
}

func (p *Presenter) ResetFill(s *track.Station) {
	p.lastStep = -1
	p.log.Debug().Str("station", s.ID).Msg("fill reset")
}

func (p *Presenter) ShowSwap(bindings []input.Binding) {
	lines := make([]string, len(bindings))
	for i, b := range bindings {
		lines[i] = b.String()
	}
	p.log.Info().Strs("bindings", lines).Msg("SWAP!")
}

func (p *Presenter) ShowCountdown(label string) {
	p.log.Info().Msg(label)
}

func (p *Presenter) HideCountdown() {}

// bar draws v (0..100) as a ten cell gauge.
func bar(v float64) string {
	n := int(math.Round(math.Max(0, math.Min(100, v)) / progressStep))
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", 10-n) + "]"
}
