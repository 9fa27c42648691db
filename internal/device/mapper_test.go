package device_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plangrove/voicelink/internal/device"
	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/domain/voice"
)

func TestDeviceIDRoundTrip(t *testing.T) {
	deviceID := device.PlantIDToDeviceID("abc123")
	require.Equal(t, "plant-abc123", deviceID)

	plantID, ok := device.DeviceIDToPlantID(deviceID)
	require.True(t, ok)
	require.Equal(t, "abc123", plantID)
}

func TestDeviceIDToPlantIDRejectsForeignIDs(t *testing.T) {
	for _, id := range []string{"", "plant-", "light-7", "abc123"} {
		_, ok := device.DeviceIDToPlantID(id)
		require.False(t, ok, "id %q should not resolve", id)
	}
}

func TestPlantToDevice(t *testing.T) {
	plant := domain.Plant{
		ID:       "p1",
		GroveID:  "g1",
		Name:     "Freddy Fern",
		Species:  "Boston Fern",
		Location: "kitchen window",
	}
	grove := domain.Grove{ID: "g1", Name: "Apartment", Location: "living room"}

	d := device.PlantToDevice(plant, grove)
	require.Equal(t, "plant-p1", d.ID)
	require.Equal(t, voice.DeviceTypeSprinkler, d.Type)
	require.Equal(t, []string{voice.TraitStartStop}, d.Traits)
	require.Equal(t, "Freddy Fern", d.Name.Name)
	require.Equal(t, []string{"Boston Fern"}, d.Name.DefaultNames)
	require.False(t, d.WillReportState)
	require.Equal(t, "kitchen window", d.RoomHint)
}

func TestRoomHintFallsBackToGrove(t *testing.T) {
	plant := domain.Plant{ID: "p1", Name: "Fern"}
	grove := domain.Grove{ID: "g1", Name: "Balcony Grove", Location: "balcony"}

	d := device.PlantToDevice(plant, grove)
	require.Equal(t, "balcony", d.RoomHint)

	grove.Location = ""
	d = device.PlantToDevice(plant, grove)
	require.Equal(t, "Balcony Grove", d.RoomHint)
}

func TestGenerateNicknames(t *testing.T) {
	nicknames := device.GenerateNicknames("Freddy Fern", "Boston Fern")
	require.Equal(t, []string{"freddy", "fern", "boston fern", "my boston fern", "boston"}, nicknames)
}

func TestGenerateNicknamesSingleWordName(t *testing.T) {
	nicknames := device.GenerateNicknames("Freddy", "Rubber Plant")
	require.Contains(t, nicknames, "the freddy")
	require.NotContains(t, nicknames, "plant")
}

func TestGenerateNicknamesDeduplicatesAndCaps(t *testing.T) {
	nicknames := device.GenerateNicknames("fern fern FERN", "fern")
	require.Equal(t, []string{"fern", "my fern"}, nicknames)

	long := device.GenerateNicknames(
		"one two three four five six seven eight nine",
		"golden pothos epipremnum aureum",
	)
	require.LessOrEqual(t, len(long), 10)
}

func TestGenerateNicknamesAreLowercase(t *testing.T) {
	for _, alias := range device.GenerateNicknames("Freddy Fern", "Boston Fern") {
		require.Equal(t, strings.ToLower(alias), alias)
	}
}
