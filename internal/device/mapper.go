package device

import (
	"strings"

	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/domain/voice"
)

const deviceIDPrefix = "plant-"

// maxNicknames caps the alias list; name-derived nicknames are inserted first
// so they win when the list overflows.
const maxNicknames = 10

// nicknameStoplist filters species-derived words that make useless aliases.
var nicknameStoplist = map[string]struct{}{
	"plant": {},
	"tree":  {},
	"the":   {},
	"my":    {},
	"a":     {},
}

// PlantIDToDeviceID encodes a plant id as its platform device id.
func PlantIDToDeviceID(plantID string) string {
	return deviceIDPrefix + plantID
}

// DeviceIDToPlantID inverts PlantIDToDeviceID. Ids lacking the prefix are
// reported as unrecognized, never as an error.
func DeviceIDToPlantID(deviceID string) (string, bool) {
	plantID, found := strings.CutPrefix(deviceID, deviceIDPrefix)
	if !found || plantID == "" {
		return "", false
	}
	return plantID, true
}

// PlantToDevice builds the platform device descriptor for a plant, computed
// fresh on every SYNC.
func PlantToDevice(plant domain.Plant, grove domain.Grove) voice.Device {
	return voice.Device{
		ID:     PlantIDToDeviceID(plant.ID),
		Type:   voice.DeviceTypeSprinkler,
		Traits: []string{voice.TraitStartStop},
		Name: voice.DeviceName{
			Name:         plant.Name,
			DefaultNames: []string{plant.Species},
			Nicknames:    GenerateNicknames(plant.Name, plant.Species),
		},
		WillReportState: false,
		RoomHint:        roomHint(plant, grove),
	}
}

// GenerateNicknames derives up to ten voice-matchable aliases from the
// display name and species. Order matters: name words first, then the
// species forms, then leftover species words.
func GenerateNicknames(name, species string) []string {
	var nicknames []string
	seen := make(map[string]struct{})
	add := func(alias string) {
		alias = strings.TrimSpace(strings.ToLower(alias))
		if alias == "" {
			return
		}
		if _, dup := seen[alias]; dup {
			return
		}
		seen[alias] = struct{}{}
		nicknames = append(nicknames, alias)
	}

	nameWords := strings.Fields(strings.ToLower(name))
	for _, word := range nameWords {
		if len(word) > 2 {
			add(word)
		}
	}

	kind := strings.ToLower(strings.TrimSpace(species))
	if kind != "" {
		add(kind)
		add("my " + kind)
	}

	if len(nameWords) == 1 {
		add("the " + nameWords[0])
	}

	for _, word := range strings.Fields(kind) {
		if _, stop := nicknameStoplist[word]; stop {
			continue
		}
		add(word)
	}

	if len(nicknames) > maxNicknames {
		nicknames = nicknames[:maxNicknames]
	}
	return nicknames
}

// roomHint picks the most specific location available: the plant's own spot,
// then the grove's location, then the grove name.
func roomHint(plant domain.Plant, grove domain.Grove) string {
	for _, candidate := range []string{plant.Location, grove.Location, grove.Name} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}
