// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Mode is the top-level content category a snapshot is computed for.
type Mode string

const (
	ModeMythicPlus Mode = "MYTHIC_PLUS"
	ModeRaid       Mode = "RAID"
)

// Modes lists every scoreable mode in refresh order.
var Modes = []Mode{ModeMythicPlus, ModeRaid}

// ParseMode accepts MYTHIC_PLUS or RAID (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeMythicPlus:
		return ModeMythicPlus, nil
	case ModeRaid:
		return ModeRaid, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// RefreshMode is the mode requested for a refresh run; ALL expands to every Mode.
type RefreshMode string

const RefreshAll RefreshMode = "ALL"

// ParseRefreshMode accepts MYTHIC_PLUS, RAID or ALL. Empty input means ALL.
func ParseRefreshMode(s string) (RefreshMode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == string(RefreshAll) {
		return RefreshAll, nil
	}
	m, err := ParseMode(s)
	if err != nil {
		return "", err
	}
	return RefreshMode(m), nil
}

// Expand returns the concrete modes covered by the request.
func (r RefreshMode) Expand() []Mode {
	if r == "" || r == RefreshAll {
		return Modes
	}
	return []Mode{Mode(r)}
}

// Single returns the concrete mode, or nil for ALL.
func (r RefreshMode) Single() *Mode {
	if r == "" || r == RefreshAll {
		return nil
	}
	m := Mode(r)
	return &m
}

// Role is the combat role of a spec.
type Role string

const (
	RoleDPS    Role = "DPS"
	RoleTank   Role = "TANK"
	RoleHealer Role = "HEALER"
)

// Roles lists every role in display order.
var Roles = []Role{RoleDPS, RoleTank, RoleHealer}

// Order returns the display position of the role; unknown roles sort last.
func (r Role) Order() int {
	for i, v := range Roles {
		if v == r {
			return i
		}
	}
	return len(Roles)
}

// Tier is a discrete ranking label.
type Tier string

const (
	TierS     Tier = "S"
	TierAPlus Tier = "A_PLUS"
	TierA     Tier = "A"
	TierBPlus Tier = "B_PLUS"
	TierB     Tier = "B"
	TierC     Tier = "C"
)

// Label returns the display form of the tier, e.g. "A+".
func (t Tier) Label() string {
	return strings.ReplaceAll(string(t), "_PLUS", "+")
}

// Trigger identifies what started a refresh run.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerCron     Trigger = "cron"
	TriggerInterval Trigger = "interval"
	TriggerSeed     Trigger = "seed"
)

// ParseTrigger defaults to manual for unknown or empty input.
func ParseTrigger(s string) Trigger {
	switch t := Trigger(strings.ToLower(strings.TrimSpace(s))); t {
	case TriggerManual, TriggerCron, TriggerInterval, TriggerSeed:
		return t
	default:
		return TriggerManual
	}
}

// JobStatus is the lifecycle state of a JobRun.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)
