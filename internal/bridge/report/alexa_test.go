package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/pkg/options"
)

type alexaServer struct {
	*httptest.Server

	mu          sync.Mutex
	tokenCalls  int
	events      []alexaEvent
	eventStatus int
}

func newAlexaServer(t *testing.T) *alexaServer {
	s := &alexaServer{eventStatus: http.StatusAccepted}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))

		s.mu.Lock()
		s.tokenCalls++
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access","expires_in":3600,"token_type":"bearer"}`))
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		var ev alexaEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))

		s.mu.Lock()
		s.events = append(s.events, ev)
		status := s.eventStatus
		s.mu.Unlock()

		w.WriteHeader(status)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestAlexa(srv *alexaServer) *Alexa {
	opts := options.NewAlexaOptions()
	opts.Enabled = true
	opts.ClientID = "client"
	opts.ClientSecret = "secret"
	opts.EventURL = srv.URL + "/events"
	opts.TokenURL = srv.URL + "/token"

	clk := testingclock.NewFakePassiveClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewAlexa(opts, WithHTTPClient(srv.Client()), WithClock(clk))
}

func TestAlexaEnabled(t *testing.T) {
	opts := options.NewAlexaOptions()
	assert.False(t, NewAlexa(opts).Enabled())

	opts.Enabled = true
	assert.False(t, NewAlexa(opts).Enabled(), "credentials are required")

	opts.ClientID, opts.ClientSecret = "id", "secret"
	assert.True(t, NewAlexa(opts).Enabled())
}

func TestAlexaEligible(t *testing.T) {
	a := NewAlexa(options.NewAlexaOptions())

	assert.True(t, a.Eligible(&model.Shadow{DisplayCategories: []string{"CONTACT_SENSOR"}}))
	assert.False(t, a.Eligible(&model.Shadow{DisplayCategories: []string{"TV"}}))
}

func TestAlexaPushSendsChangeReport(t *testing.T) {
	srv := newAlexaServer(t)
	a := newTestAlexa(srv)

	shadow := testShadow()
	shadow.State["brightness"] = 40

	err := a.Push(context.Background(), linkedAccount("alexa"), shadow, []string{"brightness", "power"})
	require.NoError(t, err)

	require.Len(t, srv.events, 1)
	ev := srv.events[0]
	assert.Equal(t, "ChangeReport", ev.Event.Header.Name)
	assert.Equal(t, "3", ev.Event.Header.PayloadVersion)
	assert.NotEmpty(t, ev.Event.Header.MessageID)
	assert.Equal(t, "lamp", ev.Event.Endpoint.EndpointID)
	assert.Equal(t, "BearerToken", ev.Event.Endpoint.Scope.Type)
	assert.Equal(t, "access", ev.Event.Endpoint.Scope.Token)
	assert.Equal(t, "PHYSICAL_INTERACTION", ev.Event.Payload.Change.Cause.Type)

	props := ev.Event.Payload.Change.Properties
	require.Len(t, props, 2)
	assert.Equal(t, "Alexa.BrightnessController", props[0].Namespace)
	assert.EqualValues(t, 40, props[0].Value)
	assert.Equal(t, "Alexa.PowerController", props[1].Namespace)
	assert.Equal(t, "ON", props[1].Value)
	assert.Equal(t, "2025-03-01T12:00:00Z", props[1].TimeOfSample)
}

func TestAlexaPushReusesAccessToken(t *testing.T) {
	srv := newAlexaServer(t)
	a := newTestAlexa(srv)

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Push(context.Background(), linkedAccount("alexa"), testShadow(), []string{"power"}))
	}

	assert.Equal(t, 1, srv.tokenCalls)
	assert.Len(t, srv.events, 3)
}

func TestAlexaPushNothingToReport(t *testing.T) {
	srv := newAlexaServer(t)
	a := newTestAlexa(srv)

	require.NoError(t, a.Push(context.Background(), linkedAccount("alexa"), testShadow(), []string{"unknownKey"}))

	assert.Equal(t, 0, srv.tokenCalls)
	assert.Empty(t, srv.events)
}

func TestAlexaPushLinkRemoved(t *testing.T) {
	srv := newAlexaServer(t)
	srv.eventStatus = http.StatusNotFound
	a := newTestAlexa(srv)

	err := a.Push(context.Background(), linkedAccount("alexa"), testShadow(), []string{"power"})
	require.ErrorIs(t, err, ErrLinkRemoved)
}

func TestAlexaPushUnauthorizedDropsToken(t *testing.T) {
	srv := newAlexaServer(t)
	srv.eventStatus = http.StatusUnauthorized
	a := newTestAlexa(srv)

	err := a.Push(context.Background(), linkedAccount("alexa"), testShadow(), []string{"power"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLinkRemoved)

	srv.mu.Lock()
	srv.eventStatus = http.StatusAccepted
	srv.mu.Unlock()

	require.NoError(t, a.Push(context.Background(), linkedAccount("alexa"), testShadow(), []string{"power"}))
	assert.Equal(t, 2, srv.tokenCalls)
}

func TestAlexaPushDisabled(t *testing.T) {
	a := NewAlexa(options.NewAlexaOptions())
	err := a.Push(context.Background(), linkedAccount("alexa"), testShadow(), []string{"power"})
	require.ErrorIs(t, err, ErrDisabled)
}

func TestAlexaThermostatProperties(t *testing.T) {
	shadow := &model.Shadow{
		State: map[string]any{
			"thermostatSetPoint": 21.5,
			"thermostatMode":     "HEAT",
		},
		Attributes: map[string]any{"temperatureScale": "FAHRENHEIT"},
	}

	props := alexaProperties(shadow, []string{"thermostatMode", "thermostatSetPoint"}, time.Now())
	require.Len(t, props, 2)
	assert.Equal(t, "thermostatMode", props[0].Name)
	assert.Equal(t, map[string]any{"value": 21.5, "scale": "FAHRENHEIT"}, props[1].Value)
}

func TestAlexaColorReportedOnce(t *testing.T) {
	shadow := &model.Shadow{
		State: map[string]any{"colorHue": 120, "colorSaturation": 0.5, "colorBrightness": 1},
	}

	props := alexaProperties(shadow, []string{"colorBrightness", "colorHue", "colorSaturation"}, time.Now())
	require.Len(t, props, 1)
	assert.Equal(t, "color", props[0].Name)
}
