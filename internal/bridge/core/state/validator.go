package state

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
)

// Rejection describes one field, or field group, that failed its rule.
type Rejection struct {
	Attribute Attribute
	Value     any
	Reason    string
}

// Message renders the rejection for the user notification channel.
func (r Rejection) Message() string {
	return fmt.Sprintf("%s value %v rejected: %s", r.Attribute, r.Value, r.Reason)
}

// Result is the outcome of validating a patch against a shadow.
type Result struct {
	// Patch is what must be merged into the store. It always stamps Time.
	Patch model.StatePatch
	// State is the shadow state after applying Patch.
	State map[string]any
	// Changed lists the state keys whose value differs from before, sorted.
	Changed []string
	// Rejections are in rule order.
	Rejections []Rejection
	// Ignored lists unknown keys and keys of undeclared capabilities, sorted.
	Ignored []string
}

// Validate checks every field of raw independently and builds the patch of
// the valid ones. It never fails: invalid fields end up in Rejections.
func Validate(shadow *model.Shadow, raw map[string]any, now time.Time) Result {
	w := newWorking(shadow.State)

	inputs := make(map[int]input)
	for key, value := range raw {
		i, ok := ruleIndex[Attribute(key)]
		if !ok || !shadow.HasCapability(rules[i].capability) {
			w.ignored = append(w.ignored, key)
			continue
		}
		if inputs[i] == nil {
			inputs[i] = input{}
		}
		inputs[i][Attribute(key)] = value
	}

	for i, r := range rules {
		if in, ok := inputs[i]; ok {
			r.apply(in, w)
		}
	}

	w.set(Time, now.UTC().Format(time.RFC3339Nano))

	return w.result()
}

// working tracks the state while rules are applied in order.
type working struct {
	base       map[string]any
	next       map[string]any
	sets       map[string]any
	unsets     []string
	rejections []Rejection
	ignored    []string
}

func newWorking(base map[string]any) *working {
	next := maps.Clone(base)
	if next == nil {
		next = map[string]any{}
	}
	return &working{
		base: base,
		next: next,
		sets: map[string]any{},
	}
}

func (w *working) current(key string) any {
	return w.next[key]
}

func (w *working) touched(key string) bool {
	_, ok := w.sets[key]
	return ok
}

func (w *working) set(key string, v any) {
	w.next[key] = v
	w.sets[key] = v
	w.unsets = slices.DeleteFunc(w.unsets, func(k string) bool { return k == key })
}

func (w *working) unset(key string) {
	delete(w.sets, key)
	if _, ok := w.next[key]; !ok {
		return
	}
	delete(w.next, key)
	if !slices.Contains(w.unsets, key) {
		w.unsets = append(w.unsets, key)
	}
}

func (w *working) reject(a Attribute, v any, reason string) {
	w.rejections = append(w.rejections, Rejection{Attribute: a, Value: v, Reason: reason})
}

func (w *working) result() Result {
	var changed []string
	for k, v := range w.sets {
		if k == Time {
			continue
		}
		if old, ok := w.base[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}
	changed = append(changed, w.unsets...)
	sort.Strings(changed)
	sort.Strings(w.ignored)

	return Result{
		Patch:      model.StatePatch{Set: w.sets, Unset: w.unsets},
		State:      w.next,
		Changed:    changed,
		Rejections: w.rejections,
		Ignored:    w.ignored,
	}
}
