package model

import (
	"slices"
)

// Capability is an interface a device declares, e.g. PowerController.
type Capability string

const (
	CapabilityBrightness       Capability = "BrightnessController"
	CapabilityColor            Capability = "ColorController"
	CapabilityColorTemperature Capability = "ColorTemperatureController"
	CapabilityContactSensor    Capability = "ContactSensor"
	CapabilityMotionSensor     Capability = "MotionSensor"
	CapabilityLock             Capability = "LockController"
	CapabilityPower            Capability = "PowerController"
	CapabilityPercentage       Capability = "PercentageController"
	CapabilityRange            Capability = "RangeController"
	CapabilityThermostat       Capability = "ThermostatController"
	CapabilityTemperature      Capability = "TemperatureSensor"
	CapabilityInput            Capability = "InputController"
	CapabilitySpeaker          Capability = "Speaker"
)

// Shadow is the persisted mirror of a device.
type Shadow struct {
	Username     string       `json:"username" yaml:"username"`
	EndpointID   string       `json:"endpointId" yaml:"endpointId"`
	FriendlyName string       `json:"friendlyName,omitempty" yaml:"friendlyName,omitempty"`
	Capabilities []Capability `json:"capabilities" yaml:"capabilities"`

	State map[string]any `json:"state" yaml:"state"`

	ReportState       bool           `json:"reportState" yaml:"reportState"`
	DisplayCategories []string       `json:"displayCategories" yaml:"displayCategories"`
	Attributes        map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// HasCapability reports whether the device declares c.
func (s *Shadow) HasCapability(c Capability) bool {
	return slices.Contains(s.Capabilities, c)
}

// HasCategory reports whether any display category is in allowed.
func (s *Shadow) HasCategory(allowed map[string]struct{}) bool {
	for _, c := range s.DisplayCategories {
		if _, ok := allowed[c]; ok {
			return true
		}
	}
	return false
}

// StatePatch is a validated change to a shadow's state.
// Unset keys are removed after Set is applied.
type StatePatch struct {
	Set   map[string]any
	Unset []string
}

// Apply merges the patch into state in place and returns it.
func (p StatePatch) Apply(state map[string]any) map[string]any {
	if state == nil {
		state = map[string]any{}
	}
	for k, v := range p.Set {
		state[k] = v
	}
	for _, k := range p.Unset {
		delete(state, k)
	}
	return state
}
