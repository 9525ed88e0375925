package report

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/bridge/core/state"
	"github.com/autopeer-io/voicelink/pkg/options"
)

var _ Reporter = (*Alexa)(nil)

// Alexa sends ChangeReport events to the Alexa event gateway. Each user has
// their own access token, obtained from the refresh token stored in their link.
type Alexa struct {
	base
	opts *options.AlexaOptions
}

// NewAlexa creates the Alexa reporter.
func NewAlexa(opts *options.AlexaOptions, optFns ...Option) *Alexa {
	return &Alexa{
		base: newBase(opts.Timeout, optFns),
		opts: opts,
	}
}

func (a *Alexa) Name() string { return model.IntegrationAlexa }

func (a *Alexa) Enabled() bool {
	return a.opts.Enabled && a.opts.ClientID != "" && a.opts.ClientSecret != ""
}

func (a *Alexa) Eligible(shadow *model.Shadow) bool {
	return shadow.HasCategory(alexaCategories)
}

func (a *Alexa) Push(ctx context.Context, account *model.Account, shadow *model.Shadow, changed []string) error {
	if !a.Enabled() {
		return ErrDisabled
	}

	properties := alexaProperties(shadow, changed, a.clock.Now())
	if len(properties) == 0 {
		return nil
	}

	link := account.Links[model.IntegrationAlexa]
	if link.RefreshToken == "" {
		return errors.New("alexa link has no refresh token")
	}

	token, err := a.tokens.Get(ctx, account.Username, func(ctx context.Context) (string, time.Duration, error) {
		return a.postForm(ctx, a.opts.TokenURL, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {link.RefreshToken},
			"client_id":     {a.opts.ClientID},
			"client_secret": {a.opts.ClientSecret},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to obtain alexa access token: %w", linkRemoved(err))
	}

	event := newChangeReport(shadow.EndpointID, token, properties)
	if err := a.postJSON(ctx, a.opts.EventURL, token, event); err != nil {
		if isUnauthorized(err) {
			a.tokens.Invalidate(account.Username)
		}
		return linkRemoved(err)
	}
	return nil
}

type alexaEvent struct {
	Event   alexaEventBody `json:"event"`
	Context alexaContext   `json:"context"`
}

type alexaEventBody struct {
	Header   alexaHeader   `json:"header"`
	Endpoint alexaEndpoint `json:"endpoint"`
	Payload  alexaPayload  `json:"payload"`
}

type alexaHeader struct {
	Namespace      string `json:"namespace"`
	Name           string `json:"name"`
	MessageID      string `json:"messageId"`
	PayloadVersion string `json:"payloadVersion"`
}

type alexaEndpoint struct {
	Scope      alexaScope `json:"scope"`
	EndpointID string     `json:"endpointId"`
}

type alexaScope struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type alexaPayload struct {
	Change alexaChange `json:"change"`
}

type alexaChange struct {
	Cause      alexaCause      `json:"cause"`
	Properties []alexaProperty `json:"properties"`
}

type alexaCause struct {
	Type string `json:"type"`
}

type alexaContext struct {
	Properties []alexaProperty `json:"properties"`
}

type alexaProperty struct {
	Namespace                 string `json:"namespace"`
	Name                      string `json:"name"`
	Value                     any    `json:"value"`
	TimeOfSample              string `json:"timeOfSample"`
	UncertaintyInMilliseconds int    `json:"uncertaintyInMilliseconds"`
}

func newChangeReport(endpointID, token string, properties []alexaProperty) *alexaEvent {
	return &alexaEvent{
		Event: alexaEventBody{
			Header: alexaHeader{
				Namespace:      "Alexa",
				Name:           "ChangeReport",
				MessageID:      uuid.NewString(),
				PayloadVersion: "3",
			},
			Endpoint: alexaEndpoint{
				Scope:      alexaScope{Type: "BearerToken", Token: token},
				EndpointID: endpointID,
			},
			Payload: alexaPayload{
				Change: alexaChange{
					Cause:      alexaCause{Type: "PHYSICAL_INTERACTION"},
					Properties: properties,
				},
			},
		},
		Context: alexaContext{Properties: []alexaProperty{}},
	}
}

// alexaProperties maps changed state keys to Alexa interface properties.
func alexaProperties(shadow *model.Shadow, changed []string, now time.Time) []alexaProperty {
	st := shadow.State
	sample := now.UTC().Format(time.RFC3339)
	scale := temperatureScale(shadow)

	prop := func(namespace, name string, value any) alexaProperty {
		return alexaProperty{
			Namespace:                 namespace,
			Name:                      name,
			Value:                     value,
			TimeOfSample:              sample,
			UncertaintyInMilliseconds: 500,
		}
	}

	var out []alexaProperty
	colorDone := false
	for _, key := range changed {
		v, present := st[key]
		switch state.Attribute(key) {
		case state.Brightness:
			if present {
				out = append(out, prop("Alexa.BrightnessController", "brightness", v))
			}
		case state.ColorHue, state.ColorSaturation, state.ColorBrightness:
			if colorDone || !present {
				continue
			}
			colorDone = true
			out = append(out, prop("Alexa.ColorController", "color", map[string]any{
				"hue":        st[string(state.ColorHue)],
				"saturation": st[string(state.ColorSaturation)],
				"brightness": st[string(state.ColorBrightness)],
			}))
		case state.ColorTemperature:
			if present {
				out = append(out, prop("Alexa.ColorTemperatureController", "colorTemperatureInKelvin", v))
			}
		case state.Contact:
			out = append(out, prop("Alexa.ContactSensor", "detectionState", v))
		case state.Motion:
			out = append(out, prop("Alexa.MotionSensor", "detectionState", v))
		case state.Lock:
			out = append(out, prop("Alexa.LockController", "lockState", v))
		case state.Power:
			out = append(out, prop("Alexa.PowerController", "powerState", v))
		case state.Percentage:
			out = append(out, prop("Alexa.PercentageController", "percentage", v))
		case state.RangeValue:
			out = append(out, prop("Alexa.RangeController", "rangeValue", v))
		case state.ThermostatSetPoint:
			out = append(out, prop("Alexa.ThermostatController", "targetSetpoint", map[string]any{"value": v, "scale": scale}))
		case state.ThermostatMode:
			out = append(out, prop("Alexa.ThermostatController", "thermostatMode", v))
		case state.Temperature:
			out = append(out, prop("Alexa.TemperatureSensor", "temperature", map[string]any{"value": v, "scale": scale}))
		case state.Input:
			out = append(out, prop("Alexa.InputController", "input", v))
		case state.Volume:
			out = append(out, prop("Alexa.Speaker", "volume", v))
		case state.Mute:
			out = append(out, prop("Alexa.Speaker", "muted", v))
		}
	}
	return out
}

func temperatureScale(shadow *model.Shadow) string {
	if s, ok := shadow.Attributes["temperatureScale"].(string); ok && s != "" {
		return s
	}
	return "CELSIUS"
}
