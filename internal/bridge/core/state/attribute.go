package state

import (
	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
)

// Attribute is a state field accepted in a telemetry patch.
type Attribute string

const (
	Brightness          Attribute = "brightness"
	ColorHue            Attribute = "colorHue"
	ColorSaturation     Attribute = "colorSaturation"
	ColorBrightness     Attribute = "colorBrightness"
	ColorTemperature    Attribute = "colorTemperature"
	Contact             Attribute = "contact"
	Motion              Attribute = "motion"
	Lock                Attribute = "lock"
	Power               Attribute = "power"
	Percentage          Attribute = "percentage"
	PercentageDelta     Attribute = "percentageDelta"
	RangeValue          Attribute = "rangeValue"
	RangeValueDelta     Attribute = "rangeValueDelta"
	ThermostatSetPoint  Attribute = "thermostatSetPoint"
	TargetSetpointDelta Attribute = "targetSetpointDelta"
	ThermostatMode      Attribute = "thermostatMode"
	Temperature         Attribute = "temperature"
	Input               Attribute = "input"
	Volume              Attribute = "volume"
	VolumeDelta         Attribute = "volumeDelta"
	Mute                Attribute = "mute"
)

// Time is the state key stamped on every patch attempt.
const Time = "time"

// Thermostat modes.
const (
	ModeAuto = "AUTO"
	ModeHeat = "HEAT"
	ModeCool = "COOL"
	ModeEco  = "ECO"
	ModeOff  = "OFF"

	// DefaultThermostatMode is used when neither the patch nor the shadow has a mode.
	DefaultThermostatMode = ModeHeat
)

// rule validates one group of attributes and applies it to the working state.
type rule struct {
	capability model.Capability
	attributes []Attribute
	apply      func(in input, w *working)
}

// rules is the static dispatch table. Every Attribute belongs to exactly one rule.
var rules = []rule{
	{
		capability: model.CapabilityBrightness,
		attributes: []Attribute{Brightness},
		apply:      rangeRule(Brightness, 0, 100),
	},
	{
		capability: model.CapabilityColor,
		attributes: []Attribute{ColorHue, ColorSaturation, ColorBrightness},
		apply:      applyColor,
	},
	{
		capability: model.CapabilityColorTemperature,
		attributes: []Attribute{ColorTemperature},
		apply:      applyColorTemperature,
	},
	{
		capability: model.CapabilityContactSensor,
		attributes: []Attribute{Contact},
		apply:      enumRule(Contact, "DETECTED", "NOT_DETECTED"),
	},
	{
		capability: model.CapabilityMotionSensor,
		attributes: []Attribute{Motion},
		apply:      enumRule(Motion, "DETECTED", "NOT_DETECTED"),
	},
	{
		capability: model.CapabilityLock,
		attributes: []Attribute{Lock},
		apply:      enumRule(Lock, "LOCKED", "UNLOCKED"),
	},
	{
		capability: model.CapabilityPower,
		attributes: []Attribute{Power},
		apply:      enumRule(Power, "ON", "OFF"),
	},
	{
		capability: model.CapabilityPercentage,
		attributes: []Attribute{Percentage, PercentageDelta},
		apply:      deltaRule(Percentage, PercentageDelta, true),
	},
	{
		capability: model.CapabilityRange,
		attributes: []Attribute{RangeValue, RangeValueDelta},
		apply:      deltaRule(RangeValue, RangeValueDelta, false),
	},
	{
		capability: model.CapabilityThermostat,
		attributes: []Attribute{ThermostatSetPoint, TargetSetpointDelta, ThermostatMode},
		apply:      applyThermostat,
	},
	{
		capability: model.CapabilityTemperature,
		attributes: []Attribute{Temperature},
		apply:      numberRule(Temperature),
	},
	{
		capability: model.CapabilityInput,
		attributes: []Attribute{Input},
		apply:      applyInput,
	},
	{
		capability: model.CapabilitySpeaker,
		attributes: []Attribute{Volume, VolumeDelta},
		apply:      deltaRule(Volume, VolumeDelta, true),
	},
	{
		capability: model.CapabilitySpeaker,
		attributes: []Attribute{Mute},
		apply:      applyMute,
	},
}

// ruleIndex maps each attribute to its rule.
var ruleIndex = func() map[Attribute]int {
	idx := make(map[Attribute]int)
	for i, r := range rules {
		for _, a := range r.attributes {
			idx[a] = i
		}
	}
	return idx
}()
