package report

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/bridge/core/state"
	"github.com/autopeer-io/voicelink/pkg/options"
)

const (
	homegraphScope = "https://www.googleapis.com/auth/homegraph"
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// serviceTokenKey is the cache key of the single service account token.
	serviceTokenKey = "service-account"
)

var _ Reporter = (*Google)(nil)

// ServiceAccountKey is the subset of a Google service account key file we use.
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"token_uri"`
}

// Google sends reportState calls to HomeGraph, authenticated as a service account.
type Google struct {
	base
	opts *options.GoogleOptions

	key        *ServiceAccountKey
	privateKey *rsa.PrivateKey
}

// NewGoogle creates the HomeGraph reporter. When enabled, the service
// account key file must be readable and valid.
func NewGoogle(opts *options.GoogleOptions, optFns ...Option) (*Google, error) {
	g := &Google{
		base: newBase(opts.Timeout, optFns),
		opts: opts,
	}
	if !opts.Enabled {
		return g, nil
	}

	data, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read google credentials: %w", err)
	}
	if err := g.loadKey(data); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Google) loadKey(data []byte) error {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return fmt.Errorf("failed to parse google credentials: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" || key.TokenURI == "" {
		return fmt.Errorf("google credentials must contain client_email, private_key and token_uri")
	}

	pk, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return fmt.Errorf("failed to parse google private key: %w", err)
	}

	g.key = &key
	g.privateKey = pk
	return nil
}

func (g *Google) Name() string { return model.IntegrationGoogle }

func (g *Google) Enabled() bool {
	return g.opts.Enabled && g.privateKey != nil
}

// Eligible requires the device to opt in to state reporting.
func (g *Google) Eligible(shadow *model.Shadow) bool {
	return shadow.ReportState && shadow.HasCategory(googleCategories)
}

func (g *Google) Push(ctx context.Context, account *model.Account, shadow *model.Shadow, changed []string) error {
	if !g.Enabled() {
		return ErrDisabled
	}

	states := googleStates(shadow, changed)
	if len(states) == 0 {
		return nil
	}

	token, err := g.tokens.Get(ctx, serviceTokenKey, g.fetchToken)
	if err != nil {
		return fmt.Errorf("failed to obtain google access token: %w", err)
	}

	agentUserID := account.UserID
	if agentUserID == "" {
		agentUserID = account.Username
	}

	body := map[string]any{
		"requestId":   uuid.NewString(),
		"agentUserId": agentUserID,
		"payload": map[string]any{
			"devices": map[string]any{
				"states": map[string]any{shadow.EndpointID: states},
			},
		},
	}
	if err := g.postJSON(ctx, g.opts.APIURL, token, body); err != nil {
		if isUnauthorized(err) {
			g.tokens.Invalidate(serviceTokenKey)
		}
		return linkRemoved(err)
	}
	return nil
}

type assertionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// fetchToken exchanges a signed assertion for an access token.
func (g *Google) fetchToken(ctx context.Context) (string, time.Duration, error) {
	now := g.clock.Now()
	claims := assertionClaims{
		Scope: homegraphScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.key.ClientEmail,
			Audience:  jwt.ClaimStrings{g.key.TokenURI},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.key.PrivateKeyID != "" {
		tok.Header["kid"] = g.key.PrivateKeyID
	}
	assertion, err := tok.SignedString(g.privateKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign assertion: %w", err)
	}

	return g.postForm(ctx, g.key.TokenURI, url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	})
}

// googleStates maps the changed state keys to HomeGraph trait states.
func googleStates(shadow *model.Shadow, changed []string) map[string]any {
	st := shadow.State
	out := map[string]any{}

	for _, key := range changed {
		v, present := st[key]
		switch state.Attribute(key) {
		case state.Power:
			out["on"] = v == "ON"
		case state.Brightness:
			out["brightness"] = v
		case state.ColorHue, state.ColorSaturation, state.ColorBrightness:
			if present {
				out["color"] = map[string]any{"spectrumHsv": map[string]any{
					"hue":        st[string(state.ColorHue)],
					"saturation": st[string(state.ColorSaturation)],
					"value":      st[string(state.ColorBrightness)],
				}}
			}
		case state.ColorTemperature:
			if present {
				out["color"] = map[string]any{"temperatureK": v}
			}
		case state.Lock:
			out["isLocked"] = v == "LOCKED"
			out["isJammed"] = false
		case state.ThermostatSetPoint:
			out["thermostatTemperatureSetpoint"] = v
		case state.ThermostatMode:
			if s, ok := v.(string); ok {
				out["thermostatMode"] = googleThermostatMode(s)
			}
		case state.Temperature:
			out["thermostatTemperatureAmbient"] = v
		case state.Percentage:
			out["openPercent"] = v
		}
	}

	if len(out) > 0 {
		out["online"] = true
	}
	return out
}

func googleThermostatMode(mode string) string {
	switch mode {
	case state.ModeAuto:
		return "heatcool"
	default:
		return strings.ToLower(mode)
	}
}
