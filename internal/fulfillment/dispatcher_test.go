package fulfillment_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/domain/voice"
	"github.com/plangrove/voicelink/internal/fulfillment"
	"github.com/plangrove/voicelink/internal/oauth"
)

type stubLinker struct {
	identity  *oauth.Identity
	authErr   error
	deleted   []string
	deleteErr error
}

func (s *stubLinker) ValidateAccessTokenFromHeader(ctx context.Context, header string) (*oauth.Identity, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	return s.identity, nil
}

func (s *stubLinker) DeleteLink(ctx context.Context, userID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, userID)
	return nil
}

type memoryPlantRepo struct {
	plants  map[string]domain.Plant
	events  []domain.WateringEvent
	failAll bool
}

func newMemoryPlantRepo(plants ...domain.Plant) *memoryPlantRepo {
	repo := &memoryPlantRepo{plants: make(map[string]domain.Plant)}
	for _, p := range plants {
		repo.plants[p.ID] = p
	}
	return repo
}

func (m *memoryPlantRepo) GetPlant(ctx context.Context, plantID string) (domain.Plant, error) {
	if m.failAll {
		return domain.Plant{}, errors.New("storage down")
	}
	plant, ok := m.plants[plantID]
	if !ok {
		return domain.Plant{}, errors.New("plant not found")
	}
	return plant, nil
}

func (m *memoryPlantRepo) GetPlants(ctx context.Context, plantIDs []string) ([]domain.Plant, error) {
	if m.failAll {
		return nil, errors.New("storage down")
	}
	var out []domain.Plant
	for _, id := range plantIDs {
		if plant, ok := m.plants[id]; ok {
			out = append(out, plant)
		}
	}
	return out, nil
}

func (m *memoryPlantRepo) ListPlantsByGroves(ctx context.Context, groveIDs []string) ([]domain.Plant, error) {
	if m.failAll {
		return nil, errors.New("storage down")
	}
	var out []domain.Plant
	for _, plant := range m.plants {
		for _, groveID := range groveIDs {
			if plant.GroveID == groveID {
				out = append(out, plant)
			}
		}
	}
	return out, nil
}

func (m *memoryPlantRepo) UpdateWatering(ctx context.Context, plant domain.Plant) error {
	if m.failAll {
		return errors.New("storage down")
	}
	m.plants[plant.ID] = plant
	return nil
}

func (m *memoryPlantRepo) InsertWateringEvent(ctx context.Context, event domain.WateringEvent) error {
	if m.failAll {
		return errors.New("storage down")
	}
	m.events = append(m.events, event)
	return nil
}

type memoryGroveRepo struct {
	groves  map[string]domain.Grove
	failAll bool
}

func newMemoryGroveRepo(groves ...domain.Grove) *memoryGroveRepo {
	repo := &memoryGroveRepo{groves: make(map[string]domain.Grove)}
	for _, g := range groves {
		repo.groves[g.ID] = g
	}
	return repo
}

func (m *memoryGroveRepo) GetGrove(ctx context.Context, groveID string) (domain.Grove, error) {
	grove, ok := m.groves[groveID]
	if !ok {
		return domain.Grove{}, errors.New("grove not found")
	}
	return grove, nil
}

func (m *memoryGroveRepo) GetGroves(ctx context.Context, groveIDs []string) ([]domain.Grove, error) {
	if m.failAll {
		return nil, errors.New("storage down")
	}
	var out []domain.Grove
	for _, id := range groveIDs {
		if grove, ok := m.groves[id]; ok {
			out = append(out, grove)
		}
	}
	return out, nil
}

func testIdentity(groveIDs ...string) *oauth.Identity {
	return &oauth.Identity{
		UserID:      "user-1",
		AgentUserID: domain.AgentUserID("user-1"),
		Link: domain.Link{
			UserID:         "user-1",
			AgentUserID:    domain.AgentUserID("user-1"),
			LinkedGroveIDs: groveIDs,
		},
	}
}

func newTestDispatcher(t *testing.T, linker *stubLinker, plants *memoryPlantRepo, groves *memoryGroveRepo) *fulfillment.Dispatcher {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return fulfillment.NewDispatcher(linker, plants, groves, node, zap.NewNop())
}

func dispatch(t *testing.T, d *fulfillment.Dispatcher, intent string, payload any) *voice.FulfillmentResponse {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	resp, err := d.Dispatch(context.Background(), "Bearer token", &voice.FulfillmentRequest{
		RequestID: "req-1",
		Inputs:    []voice.FulfillmentInput{{Intent: intent, Payload: raw}},
	})
	require.NoError(t, err)
	require.Equal(t, "req-1", resp.RequestID)
	return resp
}

func TestDispatchAuthFailure(t *testing.T) {
	d := newTestDispatcher(t, &stubLinker{authErr: voice.ErrDenied}, newMemoryPlantRepo(), newMemoryGroveRepo())

	_, err := d.Dispatch(context.Background(), "Bearer bad", &voice.FulfillmentRequest{
		RequestID: "req-1",
		Inputs:    []voice.FulfillmentInput{{Intent: voice.IntentSync}},
	})
	require.ErrorIs(t, err, voice.ErrDenied)
}

func TestDispatchMalformedEnvelope(t *testing.T) {
	d := newTestDispatcher(t, &stubLinker{identity: testIdentity()}, newMemoryPlantRepo(), newMemoryGroveRepo())

	_, err := d.Dispatch(context.Background(), "Bearer token", &voice.FulfillmentRequest{RequestID: "req-1"})
	require.ErrorIs(t, err, voice.ErrUnsupported)

	_, err = d.Dispatch(context.Background(), "Bearer token", &voice.FulfillmentRequest{
		RequestID: "req-1",
		Inputs:    []voice.FulfillmentInput{{Intent: "action.devices.REBOOT"}},
	})
	require.ErrorIs(t, err, voice.ErrUnsupported)
}

func TestSyncListsLinkedPlants(t *testing.T) {
	plants := newMemoryPlantRepo(
		domain.Plant{ID: "p1", GroveID: "g1", Name: "Freddy Fern", Species: "Boston Fern"},
		domain.Plant{ID: "p2", GroveID: "g2", Name: "Spike", Species: "Cactus"},
	)
	groves := newMemoryGroveRepo(
		domain.Grove{ID: "g1", Name: "Apartment"},
		domain.Grove{ID: "g2", Name: "Office"},
	)
	d := newTestDispatcher(t, &stubLinker{identity: testIdentity("g1")}, plants, groves)

	resp := dispatch(t, d, voice.IntentSync, nil)
	payload, ok := resp.Payload.(voice.SyncPayload)
	require.True(t, ok)
	require.Equal(t, "plangrove-user-1", payload.AgentUserID)
	require.Len(t, payload.Devices, 1)
	require.Equal(t, "plant-p1", payload.Devices[0].ID)
	require.Empty(t, payload.ErrorCode)
}

func TestSyncWithoutGroveConsentIsEmpty(t *testing.T) {
	// Both stores refuse every call: an empty consent list must short-circuit
	// before storage is touched, or the payload would carry a transient error.
	plants := newMemoryPlantRepo(domain.Plant{ID: "p1", GroveID: "g1"})
	plants.failAll = true
	groves := newMemoryGroveRepo(domain.Grove{ID: "g1"})
	groves.failAll = true
	d := newTestDispatcher(t, &stubLinker{identity: testIdentity()}, plants, groves)

	resp := dispatch(t, d, voice.IntentSync, nil)
	payload := resp.Payload.(voice.SyncPayload)
	require.NotNil(t, payload.Devices)
	require.Empty(t, payload.Devices)
	require.Empty(t, payload.ErrorCode)
}

func TestSyncStorageFailureIsTransient(t *testing.T) {
	plants := newMemoryPlantRepo()
	groves := newMemoryGroveRepo()
	groves.failAll = true
	d := newTestDispatcher(t, &stubLinker{identity: testIdentity("g1")}, plants, groves)

	resp := dispatch(t, d, voice.IntentSync, nil)
	payload := resp.Payload.(voice.SyncPayload)
	require.Empty(t, payload.Devices)
	require.Equal(t, voice.ErrorCodeTransient, payload.ErrorCode)
}

func TestSyncSkipsPlantsWithMissingGrove(t *testing.T) {
	plants := newMemoryPlantRepo(
		domain.Plant{ID: "p1", GroveID: "g1"},
		domain.Plant{ID: "p2", GroveID: "g-gone"},
	)
	groves := newMemoryGroveRepo(domain.Grove{ID: "g1"})
	d := newTestDispatcher(t, &stubLinker{identity: testIdentity("g1", "g-gone")}, plants, groves)

	resp := dispatch(t, d, voice.IntentSync, nil)
	payload := resp.Payload.(voice.SyncPayload)
	require.Len(t, payload.Devices, 1)
	require.Equal(t, "plant-p1", payload.Devices[0].ID)
}

func TestQueryReportsPerDeviceStates(t *testing.T) {
	lastWatered := time.Now().Add(-6 * 24 * time.Hour)
	plants := newMemoryPlantRepo(
		domain.Plant{ID: "p1", GroveID: "g1", WateringIntervalDays: 7, LastWateredAt: &lastWatered},
		domain.Plant{ID: "p2", GroveID: "g-unlinked", WateringIntervalDays: 7},
	)
	d := newTestDispatcher(t, &stubLinker{identity: testIdentity("g1")}, plants, newMemoryGroveRepo())

	resp := dispatch(t, d, voice.IntentQuery, voice.QueryRequest{Devices: []voice.DeviceRef{
		{ID: "plant-p1"},
		{ID: "plant-p2"},
		{ID: "plant-missing"},
		{ID: "thermostat-9"},
	}})
	payload := resp.Payload.(voice.QueryPayload)
	require.Len(t, payload.Devices, 4)

	healthy := payload.Devices["plant-p1"]
	require.True(t, healthy.Online)
	require.Equal(t, voice.StatusSuccess, healthy.Status)
	require.Equal(t, "Due for watering in 1 day", healthy.StatusReport)

	// Scope misses and unknown plants are indistinguishable.
	for _, id := range []string{"plant-p2", "plant-missing", "thermostat-9"} {
		state := payload.Devices[id]
		require.Equal(t, voice.StatusError, state.Status, "id %s", id)
		require.Equal(t, voice.ErrorCodeDeviceNotFound, state.ErrorCode, "id %s", id)
	}
}

func TestQueryStorageFailureIsTransient(t *testing.T) {
	plants := newMemoryPlantRepo()
	plants.failAll = true
	d := newTestDispatcher(t, &stubLinker{identity: testIdentity("g1")}, plants, newMemoryGroveRepo())

	resp := dispatch(t, d, voice.IntentQuery, voice.QueryRequest{Devices: []voice.DeviceRef{
		{ID: "plant-p1"}, {ID: "bogus"},
	}})
	payload := resp.Payload.(voice.QueryPayload)
	require.Equal(t, voice.ErrorCodeTransient, payload.Devices["plant-p1"].ErrorCode)
	require.Equal(t, voice.ErrorCodeDeviceNotFound, payload.Devices["bogus"].ErrorCode)
}

func TestDisconnectDeletesLink(t *testing.T) {
	linker := &stubLinker{identity: testIdentity("g1")}
	d := newTestDispatcher(t, linker, newMemoryPlantRepo(), newMemoryGroveRepo())

	resp := dispatch(t, d, voice.IntentDisconnect, nil)
	require.NotNil(t, resp)
	require.Equal(t, []string{"user-1"}, linker.deleted)
}

func TestDisconnectSucceedsEvenWhenDeleteFails(t *testing.T) {
	linker := &stubLinker{identity: testIdentity("g1"), deleteErr: errors.New("storage down")}
	d := newTestDispatcher(t, linker, newMemoryPlantRepo(), newMemoryGroveRepo())

	resp, err := d.Dispatch(context.Background(), "Bearer token", &voice.FulfillmentRequest{
		RequestID: "req-1",
		Inputs:    []voice.FulfillmentInput{{Intent: voice.IntentDisconnect}},
	})
	require.NoError(t, err)
	require.Equal(t, "req-1", resp.RequestID)
}
