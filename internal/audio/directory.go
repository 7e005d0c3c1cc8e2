package audio

import "github.com/rs/zerolog"

// ListDevices returns every input device followed by every output-capable
// device. A failed enumeration leaves its direction empty instead of
// aborting the whole listing.
func ListDevices(log zerolog.Logger, reg Registry) []Descriptor {
	var result []Descriptor

	inputs, err := reg.InputDevices()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to enumerate input devices")
	}
	for _, d := range inputs {
		result = append(result, Descriptor{ID: d.UID, Name: d.Name, Direction: In})
	}

	devices, err := reg.SystemDevices()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to enumerate output devices")
	}
	for _, d := range devices {
		// Devices without output streams still show up in the system list.
		if d.OutputChannels <= 0 {
			continue
		}
		result = append(result, Descriptor{ID: d.UID, Name: d.Name, Direction: Out})
	}

	return result
}

// FindOutput returns the output-capable device with the given UID.
func FindOutput(reg Registry, uid string) (Device, bool, error) {
	devices, err := reg.SystemDevices()
	if err != nil {
		return Device{}, false, err
	}
	for _, d := range devices {
		if d.UID == uid && d.OutputChannels > 0 {
			return d, true, nil
		}
	}
	return Device{}, false, nil
}
