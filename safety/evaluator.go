// Package safety implements the pre-harvest-interval (PHI) evaluator.
// It is the single implementation of the PHI rule: the harvest gate,
// batch creation and the read-only safety endpoint all call into it.
package safety

import (
	"context"
	"time"

	"orchardtrace/faults"
	"orchardtrace/models"
)

// Verdict is the outcome of a PHI evaluation against one tree or a set
// of trees as of a given date.
type Verdict struct {
	Safe            bool       `json:"safe"`
	DaysRemaining   int        `json:"daysRemaining"`
	Banned          bool       `json:"banned"`
	BindingChemical string     `json:"bindingChemical,omitempty"`
	ReleaseDate     *time.Time `json:"releaseDate,omitempty"`
}

// RuleLookup resolves a chemical name to its registry rule. A missing
// rule must be reported as faults.ErrNotFound.
type RuleLookup func(ctx context.Context, name string) (models.ChemicalRule, error)

// Evaluate applies the PHI rule to an activity history. Only pesticide
// activities participate: each contributes a release date of
// activity date + effective PHI days, where the effective days come
// from the activity's override if set, else from the registry rule in
// effect now. The binding release date is the latest one; a tree with
// no pesticide history is always safe.
//
// A banned chemical makes the verdict permanently unsafe and is
// reported through Verdict.Banned rather than a day count. An unknown
// chemical never defaults to a zero-day PHI: it returns a
// configuration fault and an unsafe verdict, even when the activity
// carries an override, because the banned flag cannot be resolved.
func Evaluate(ctx context.Context, activities []models.FarmingActivity, lookup RuleLookup, asOf time.Time) (Verdict, error) {
	verdict := Verdict{Safe: true}
	asOfDay := toDay(asOf)

	var binding time.Time
	for _, a := range activities {
		if a.ActivityType != models.ActivityPesticide {
			continue
		}
		if a.ChemicalName == "" {
			return Verdict{}, faults.Configuration("pesticide activity %d has no chemical name", a.ID)
		}

		rule, err := lookup(ctx, a.ChemicalName)
		if err != nil {
			return Verdict{}, faults.Configuration("no registry rule for chemical %q: %v", a.ChemicalName, err)
		}
		if rule.Banned {
			return Verdict{Safe: false, Banned: true, BindingChemical: rule.Name}, nil
		}

		phiDays := rule.PHIDays
		if a.PHIDaysOverride != nil {
			phiDays = *a.PHIDaysOverride
		}
		release := toDay(a.ActivityDate).AddDate(0, 0, phiDays)
		if release.After(binding) {
			binding = release
			verdict.BindingChemical = rule.Name
		}
	}

	if binding.IsZero() {
		return verdict, nil
	}

	release := binding
	verdict.ReleaseDate = &release
	verdict.Safe = !asOfDay.Before(binding)
	if !verdict.Safe {
		verdict.DaysRemaining = daysBetween(asOfDay, binding)
	}
	return verdict, nil
}

// Merge folds per-tree verdicts into a batch-level one: safe only when
// every member is safe, banned when any member is banned, and the
// longest wait wins.
func Merge(verdicts []Verdict) Verdict {
	merged := Verdict{Safe: true}
	for _, v := range verdicts {
		if v.Banned {
			merged.Banned = true
		}
		if !v.Safe {
			merged.Safe = false
		}
		if v.DaysRemaining > merged.DaysRemaining {
			merged.DaysRemaining = v.DaysRemaining
			merged.BindingChemical = v.BindingChemical
			merged.ReleaseDate = v.ReleaseDate
		}
	}
	return merged
}

func toDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	days := int(to.Sub(from) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}
