package state

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// input is the subset of a patch that belongs to one rule.
type input map[Attribute]any

func (in input) has(a Attribute) bool {
	_, ok := in[a]
	return ok
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func rangeRule(a Attribute, lo, hi float64) func(input, *working) {
	return func(in input, w *working) {
		n, ok := toNumber(in[a])
		if !ok || n < lo || n > hi {
			w.reject(a, in[a], fmt.Sprintf("must be a number between %g and %g", lo, hi))
			return
		}
		w.set(string(a), n)
	}
}

func numberRule(a Attribute) func(input, *working) {
	return func(in input, w *working) {
		n, ok := toNumber(in[a])
		if !ok {
			w.reject(a, in[a], "must be a number")
			return
		}
		w.set(string(a), n)
	}
}

func enumRule(a Attribute, allowed ...string) func(input, *working) {
	return func(in input, w *working) {
		s, ok := in[a].(string)
		if !ok || !slices.Contains(allowed, s) {
			w.reject(a, in[a], fmt.Sprintf("must be one of %v", allowed))
			return
		}
		w.set(string(a), s)
	}
}

// deltaRule handles an absolute value with a companion delta. The delta is
// added to the current value, or to zero when there is none.
func deltaRule(value, delta Attribute, clamped bool) func(input, *working) {
	return func(in input, w *working) {
		if in.has(value) {
			if in.has(delta) {
				w.reject(delta, in[delta], fmt.Sprintf("cannot be combined with %s", value))
			}
			if clamped {
				rangeRule(value, 0, 100)(in, w)
			} else {
				numberRule(value)(in, w)
			}
			return
		}

		d, ok := toNumber(in[delta])
		if !ok {
			w.reject(delta, in[delta], "must be a number")
			return
		}
		current, _ := toNumber(w.current(string(value)))
		next := current + d
		if clamped {
			next = clamp(next, 0, 100)
		}
		w.set(string(value), next)
	}
}

// applyColor requires hue, saturation and brightness together and clears the
// color temperature.
func applyColor(in input, w *working) {
	if !in.has(ColorHue) || !in.has(ColorSaturation) || !in.has(ColorBrightness) {
		w.reject(ColorHue, groupValue(in, ColorHue, ColorSaturation, ColorBrightness),
			"colorHue, colorSaturation and colorBrightness must be set together")
		return
	}

	hue, okH := toNumber(in[ColorHue])
	sat, okS := toNumber(in[ColorSaturation])
	bri, okB := toNumber(in[ColorBrightness])
	switch {
	case !okH || hue < 0 || hue > 360:
		w.reject(ColorHue, in[ColorHue], "must be a number between 0 and 360")
	case !okS || sat < 0 || sat > 1:
		w.reject(ColorSaturation, in[ColorSaturation], "must be a number between 0 and 1")
	case !okB || bri < 0 || bri > 1:
		w.reject(ColorBrightness, in[ColorBrightness], "must be a number between 0 and 1")
	default:
		w.set(string(ColorHue), hue)
		w.set(string(ColorSaturation), sat)
		w.set(string(ColorBrightness), bri)
		w.unset(string(ColorTemperature))
	}
}

// applyColorTemperature clears the hue/saturation/brightness group.
func applyColorTemperature(in input, w *working) {
	if w.touched(string(ColorHue)) {
		w.reject(ColorTemperature, in[ColorTemperature], "cannot be combined with a color")
		return
	}
	n, ok := toNumber(in[ColorTemperature])
	if !ok || n < 1000 || n > 10000 {
		w.reject(ColorTemperature, in[ColorTemperature], "must be a number between 1000 and 10000")
		return
	}
	w.set(string(ColorTemperature), n)
	w.unset(string(ColorHue))
	w.unset(string(ColorSaturation))
	w.unset(string(ColorBrightness))
}

var thermostatModes = []string{ModeAuto, ModeHeat, ModeCool, ModeEco, ModeOff}

// applyThermostat accepts an absolute setpoint or a delta, plus an optional mode.
// A setpoint change without a valid mode keeps the current mode, or the default.
func applyThermostat(in input, w *working) {
	modeApplied := false
	if in.has(ThermostatMode) {
		mode, ok := in[ThermostatMode].(string)
		if ok && slices.Contains(thermostatModes, mode) {
			w.set(string(ThermostatMode), mode)
			modeApplied = true
		} else {
			w.reject(ThermostatMode, in[ThermostatMode], fmt.Sprintf("must be one of %v", thermostatModes))
		}
	}

	setpointApplied := false
	switch {
	case in.has(ThermostatSetPoint):
		if in.has(TargetSetpointDelta) {
			w.reject(TargetSetpointDelta, in[TargetSetpointDelta], "cannot be combined with thermostatSetPoint")
		}
		n, ok := toNumber(in[ThermostatSetPoint])
		if !ok {
			w.reject(ThermostatSetPoint, in[ThermostatSetPoint], "must be a number")
			break
		}
		w.set(string(ThermostatSetPoint), n)
		setpointApplied = true
	case in.has(TargetSetpointDelta):
		d, ok := toNumber(in[TargetSetpointDelta])
		if !ok {
			w.reject(TargetSetpointDelta, in[TargetSetpointDelta], "must be a number")
			break
		}
		current, ok := toNumber(w.current(string(ThermostatSetPoint)))
		if !ok {
			w.reject(TargetSetpointDelta, in[TargetSetpointDelta], "no current setpoint to adjust")
			break
		}
		w.set(string(ThermostatSetPoint), current+d)
		setpointApplied = true
	}

	if setpointApplied && !modeApplied {
		mode, ok := w.current(string(ThermostatMode)).(string)
		if !ok || !slices.Contains(thermostatModes, mode) {
			mode = DefaultThermostatMode
		}
		w.set(string(ThermostatMode), mode)
	}
}

func applyInput(in input, w *working) {
	s, ok := in[Input].(string)
	if !ok || s == "" {
		w.reject(Input, in[Input], "must be a non-empty string")
		return
	}
	w.set(string(Input), s)
}

func applyMute(in input, w *working) {
	b, ok := in[Mute].(bool)
	if !ok {
		w.reject(Mute, in[Mute], "must be a boolean")
		return
	}
	w.set(string(Mute), b)
}

func groupValue(in input, attrs ...Attribute) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if v, ok := in[a]; ok {
			out[string(a)] = v
		}
	}
	return out
}
