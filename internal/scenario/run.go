package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kubiakdev/perms/internal/logging"
	"github.com/kubiakdev/perms/pkg/perms"
	"github.com/kubiakdev/perms/pkg/perms/permstest"
)

// Callback names as they appear in reports.
const (
	CallbackAllAccepted   = "OnAllAccepted"
	CallbackDenied        = "OnAtLeastOneDenied"
	CallbackForeverDenied = "OnAtLeastOneForeverDenied"
)

var errNoCallback = errors.New("request completed without a callback")

// Report is the result of running a scenario.
type Report struct {
	Name   string        `yaml:"name" json:"name"`
	Rounds []RoundReport `yaml:"rounds" json:"rounds"`
}

// RoundReport describes one request round.
type RoundReport struct {
	Round int `yaml:"round" json:"round"`
	// Dialog is false when the request was answered without asking the host.
	Dialog        bool     `yaml:"dialog" json:"dialog"`
	RequestCode   int      `yaml:"request_code,omitempty" json:"request_code,omitempty"`
	Callbacks     []string `yaml:"callbacks" json:"callbacks"`
	Accepted      []string `yaml:"accepted" json:"accepted"`
	Denied        []string `yaml:"denied" json:"denied"`
	ForeverDenied []string `yaml:"forever_denied" json:"forever_denied"`
}

// Run plays every round of s against a fresh permstest.Host. Callbacks
// run inline so each round is complete when its answers are delivered; ctx
// is checked between rounds.
func Run(ctx context.Context, s *Scenario, opts ...perms.Option) (*Report, error) {
	logger := logging.FromContext(logging.WithScenario(ctx, s.Name))

	host := permstest.NewHost(s.Granted...)
	opts = append(opts, perms.WithDispatcher(func(fn func()) { fn() }))
	p := perms.New(host, opts...)
	host.Attach(p)

	report := &Report{Name: s.Name}
	for i, round := range s.Rounds {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rr, err := runRound(host, p, s.Permissions, round)
		if err != nil {
			return report, fmt.Errorf("round %d: %w", i+1, err)
		}
		rr.Round = i + 1
		logger.Info().
			Int("round", rr.Round).
			Bool("dialog", rr.Dialog).
			Strs("callbacks", rr.Callbacks).
			Msg("round finished")
		report.Rounds = append(report.Rounds, rr)
	}
	return report, nil
}

func runRound(host *permstest.Host, p *perms.Perms, permissions []string, round Round) (RoundReport, error) {
	var rr RoundReport
	cb := perms.Callbacks{
		OnAllAccepted: func(accepted []string) {
			rr.Callbacks = append(rr.Callbacks, CallbackAllAccepted)
			rr.Accepted = accepted
		},
		OnAtLeastOneDenied: func(denied []string) {
			rr.Callbacks = append(rr.Callbacks, CallbackDenied)
			rr.Denied = denied
		},
		OnAtLeastOneForeverDenied: func(forever []string) {
			rr.Callbacks = append(rr.Callbacks, CallbackForeverDenied)
			rr.ForeverDenied = forever
		},
	}

	for _, perm := range round.Revoke {
		host.Revoke(perm)
	}

	before := len(host.Requests())
	if err := p.Request(permissions...).OnResult(cb); err != nil {
		return rr, err
	}
	if requests := host.Requests(); len(requests) > before {
		rr.Dialog = true
		rr.RequestCode = requests[len(requests)-1].Code
		if err := host.Respond(round.answers()); err != nil {
			return rr, err
		}
	}
	if len(rr.Callbacks) == 0 {
		p.Clear()
		return rr, errNoCallback
	}
	return rr, nil
}

// Write prints a human-readable report.
func (r *Report) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "scenario %s\n", r.Name); err != nil {
		return err
	}
	for _, rr := range r.Rounds {
		dialog := "shortcut"
		if rr.Dialog {
			dialog = fmt.Sprintf("dialog (request %d)", rr.RequestCode)
		}
		_, err := fmt.Fprintf(w, "  round %d: %s\n    callbacks: %s\n    accepted: %s\n    denied: %s\n    forever denied: %s\n",
			rr.Round, dialog,
			strings.Join(rr.Callbacks, ", "),
			formatList(rr.Accepted), formatList(rr.Denied), formatList(rr.ForeverDenied))
		if err != nil {
			return err
		}
	}
	return nil
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
