package models

import "time"

// TransitionTarget names the status a driver may move a project to.
type TransitionTarget string

const (
	TargetAccepted  TransitionTarget = "accepted"
	TargetStarted   TransitionTarget = "started"
	TargetDeclined  TransitionTarget = "declined"
	TargetCompleted TransitionTarget = "completed"
)

// StatusChange is the closed set of per-target updates. Each variant carries
// exactly the fields its transition is allowed to set, so a store can build
// the update exhaustively instead of merging a loose field map.
type StatusChange interface {
	Target() TransitionTarget

	// AllowedFrom lists the acceptance states this transition may leave.
	// Every transition additionally requires lifecycle status "active";
	// completed projects are terminal.
	AllowedFrom() []AcceptanceStatus
}

// AcceptChange moves acceptance from pending to accepted and stamps the
// acceptance timestamp and acting driver.
type AcceptChange struct {
	At time.Time
	By string
}

func (AcceptChange) Target() TransitionTarget { return TargetAccepted }
func (AcceptChange) AllowedFrom() []AcceptanceStatus {
	return []AcceptanceStatus{AcceptancePending}
}

// StartChange moves acceptance from accepted to started and stamps the start
// timestamp.
type StartChange struct {
	At time.Time
}

func (StartChange) Target() TransitionTarget { return TargetStarted }
func (StartChange) AllowedFrom() []AcceptanceStatus {
	return []AcceptanceStatus{AcceptanceAccepted}
}

// DeclineChange moves acceptance to declined. Declined is terminal on the
// acceptance axis.
type DeclineChange struct {
	At time.Time
	By string
}

func (DeclineChange) Target() TransitionTarget { return TargetDeclined }
func (DeclineChange) AllowedFrom() []AcceptanceStatus {
	return []AcceptanceStatus{AcceptancePending, AcceptanceAccepted}
}

// CompleteChange moves the top-level lifecycle to completed. The acceptance
// status is left as-is, and completed is absorbing regardless of it.
type CompleteChange struct {
	At time.Time
	By string
}

func (CompleteChange) Target() TransitionTarget { return TargetCompleted }
func (CompleteChange) AllowedFrom() []AcceptanceStatus {
	return []AcceptanceStatus{AcceptancePending, AcceptanceAccepted, AcceptanceStarted, AcceptanceDeclined}
}
