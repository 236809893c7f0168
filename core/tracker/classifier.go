package tracker

import (
	"time"

	"github.com/kilianp07/porttrack/core/geo"
	"github.com/kilianp07/porttrack/core/model"
)

// Classification is the outcome of the status rules for one sample.
type Classification struct {
	Status     model.Status
	Terminal   *model.TerminalZone
	Annotation string
	Rule       string
}

// TerminalName returns the matched terminal name or nil.
func (c Classification) TerminalName() *string {
	if c.Terminal == nil {
		return nil
	}
	name := c.Terminal.Name
	return &name
}

type ruleInput struct {
	sample   model.Sample
	prior    *model.VesselRecord
	terminal *model.TerminalZone
}

// rule returns ok=false when it does not apply.
type rule struct {
	name  string
	apply func(cfg ClassifierConfig, in ruleInput) (model.Status, string, bool)
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{name: "docked", apply: dockedRule},
	{name: "docking", apply: dockingRule},
	{name: "approach", apply: approachRule},
	{name: "open-water", apply: openWaterRule},
}

// Classifier derives a vessel status from a sample and the previous record.
type Classifier struct {
	cfg       ClassifierConfig
	terminals []model.TerminalZone
}

// NewClassifier builds a classifier over the given terminal table.
func NewClassifier(cfg ClassifierConfig, terminals []model.TerminalZone) *Classifier {
	return &Classifier{cfg: cfg, terminals: append([]model.TerminalZone(nil), terminals...)}
}

// Classify is deterministic: identical inputs always give the same result.
func (c *Classifier) Classify(s model.Sample, prior *model.VesselRecord) Classification {
	in := ruleInput{sample: s, prior: prior, terminal: c.nearestTerminal(s.Point)}
	for _, r := range rules {
		if st, note, ok := r.apply(c.cfg, in); ok {
			return Classification{Status: st, Terminal: in.terminal, Annotation: note, Rule: r.name}
		}
	}
	return Classification{Status: model.StatusInbound, Terminal: in.terminal, Rule: "default"}
}

func (c *Classifier) nearestTerminal(p geo.Point) *model.TerminalZone {
	var best *model.TerminalZone
	bestDist := 0.0
	for i := range c.terminals {
		z := &c.terminals[i]
		if !z.Contains(p) {
			continue
		}
		if d := geo.PlanarNM(z.Center, p); best == nil || d < bestDist {
			best, bestDist = z, d
		}
	}
	return best
}

func dockedRule(cfg ClassifierConfig, in ruleInput) (model.Status, string, bool) {
	if in.terminal == nil || in.sample.Speed >= cfg.DockedMaxSpeed {
		return "", "", false
	}
	p := in.prior
	if p == nil || !p.Status.AtBerth() || p.DockedAt == nil {
		return model.StatusDocked, "", true
	}
	elapsed := in.sample.Time.Sub(*p.DockedAt)
	unloadingAfter := time.Duration(cfg.UnloadingAfterMinutes * float64(time.Minute))
	extendedAfter := time.Duration(cfg.ExtendedStayHours * float64(time.Hour))
	switch {
	case elapsed >= extendedAfter:
		return model.StatusDocked, model.AnnotationExtendedStay, true
	case elapsed > unloadingAfter:
		return model.StatusUnloading, "", true
	default:
		return model.StatusDocked, "", true
	}
}

func dockingRule(cfg ClassifierConfig, in ruleInput) (model.Status, string, bool) {
	if in.terminal == nil || in.sample.Speed >= cfg.DockingMaxSpeed {
		return "", "", false
	}
	return model.StatusDocking, "", true
}

func approachRule(cfg ClassifierConfig, in ruleInput) (model.Status, string, bool) {
	if !cfg.ApproachArea.Contains(in.sample.Point) || in.sample.Speed <= 0 {
		return "", "", false
	}
	if in.sample.Point.Lng < cfg.DepartingWestOf {
		return model.StatusDeparting, "", true
	}
	return model.StatusApproaching, "", true
}

func openWaterRule(cfg ClassifierConfig, in ruleInput) (model.Status, string, bool) {
	if in.sample.Point.Lat >= cfg.OpenWaterSouthOf {
		return "", "", false
	}
	h := in.sample.Heading
	if h > cfg.SeawardHeadingFrom || h < cfg.SeawardHeadingTo {
		return model.StatusInbound, "", true
	}
	return model.StatusOutbound, "", true
}
