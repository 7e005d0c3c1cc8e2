//go:build darwin

// Package coreaudio talks to the macOS audio HAL: device UIDs, channel
// layouts, aggregate devices and the system default output.
package coreaudio

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreAudio -framework CoreFoundation

#include <CoreAudio/CoreAudio.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdlib.h>

static OSStatus deviceList(AudioObjectID **out, UInt32 *count) {
    AudioObjectPropertyAddress addr = {
        kAudioHardwarePropertyDevices,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    UInt32 size = 0;
    OSStatus status = AudioObjectGetPropertyDataSize(kAudioObjectSystemObject, &addr, 0, NULL, &size);
    if (status != noErr) {
        return status;
    }
    *count = size / sizeof(AudioObjectID);
    if (*count == 0) {
        *out = NULL;
        return noErr;
    }
    *out = (AudioObjectID *)malloc(size);
    status = AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, *out);
    if (status != noErr) {
        free(*out);
        *out = NULL;
        *count = 0;
    }
    return status;
}

static OSStatus copyStringProperty(AudioObjectID dev, AudioObjectPropertySelector sel, char *buf, UInt32 len) {
    AudioObjectPropertyAddress addr = {
        sel,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    CFStringRef value = NULL;
    UInt32 size = sizeof(value);
    OSStatus status = AudioObjectGetPropertyData(dev, &addr, 0, NULL, &size, &value);
    if (status != noErr) {
        return status;
    }
    if (value == NULL) {
        return kAudioHardwareUnspecifiedError;
    }
    Boolean ok = CFStringGetCString(value, buf, len, kCFStringEncodingUTF8);
    CFRelease(value);
    return ok ? noErr : kAudioHardwareUnspecifiedError;
}

static OSStatus channelCount(AudioObjectID dev, AudioObjectPropertyScope scope, int *out) {
    AudioObjectPropertyAddress addr = {
        kAudioDevicePropertyStreamConfiguration,
        scope,
        kAudioObjectPropertyElementMain
    };
    *out = 0;
    UInt32 size = 0;
    OSStatus status = AudioObjectGetPropertyDataSize(dev, &addr, 0, NULL, &size);
    if (status != noErr) {
        return status;
    }
    if (size == 0) {
        return noErr;
    }
    AudioBufferList *list = (AudioBufferList *)malloc(size);
    status = AudioObjectGetPropertyData(dev, &addr, 0, NULL, &size, list);
    if (status == noErr) {
        for (UInt32 i = 0; i < list->mNumberBuffers; i++) {
            *out += (int)list->mBuffers[i].mNumberChannels;
        }
    }
    free(list);
    return status;
}

static OSStatus defaultDevice(AudioObjectPropertySelector sel, AudioObjectID *out) {
    AudioObjectPropertyAddress addr = {
        sel,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    UInt32 size = sizeof(AudioObjectID);
    return AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, out);
}

static CFStringRef cfString(const char *s) {
    return CFStringCreateWithCString(kCFAllocatorDefault, s, kCFStringEncodingUTF8);
}

static OSStatus createAggregate(const char *name, const char *uid, const char *clock, const char *first, const char *second, int stacked, AudioObjectID *out) {
    CFStringRef cfName = cfString(name);
    CFStringRef cfUID = cfString(uid);
    CFStringRef cfClock = cfString(clock);
    CFStringRef cfFirst = cfString(first);
    CFStringRef cfSecond = cfString(second);

    CFMutableDictionaryRef firstSub = CFDictionaryCreateMutable(kCFAllocatorDefault, 0,
        &kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
    CFDictionarySetValue(firstSub, CFSTR(kAudioSubDeviceUIDKey), cfFirst);
    CFMutableDictionaryRef secondSub = CFDictionaryCreateMutable(kCFAllocatorDefault, 0,
        &kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
    CFDictionarySetValue(secondSub, CFSTR(kAudioSubDeviceUIDKey), cfSecond);

    CFMutableArrayRef subs = CFArrayCreateMutable(kCFAllocatorDefault, 2, &kCFTypeArrayCallBacks);
    CFArrayAppendValue(subs, firstSub);
    CFArrayAppendValue(subs, secondSub);

    CFNumberRef cfStacked = CFNumberCreate(kCFAllocatorDefault, kCFNumberIntType, &stacked);

    CFMutableDictionaryRef desc = CFDictionaryCreateMutable(kCFAllocatorDefault, 0,
        &kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
    CFDictionarySetValue(desc, CFSTR(kAudioAggregateDeviceNameKey), cfName);
    CFDictionarySetValue(desc, CFSTR(kAudioAggregateDeviceUIDKey), cfUID);
    CFDictionarySetValue(desc, CFSTR(kAudioAggregateDeviceSubDeviceListKey), subs);
    CFDictionarySetValue(desc, CFSTR(kAudioAggregateDeviceMasterSubDeviceKey), cfClock);
    CFDictionarySetValue(desc, CFSTR(kAudioAggregateDeviceIsStackedKey), cfStacked);

    OSStatus status = AudioHardwareCreateAggregateDevice(desc, out);

    CFRelease(desc);
    CFRelease(cfStacked);
    CFRelease(subs);
    CFRelease(secondSub);
    CFRelease(firstSub);
    CFRelease(cfSecond);
    CFRelease(cfFirst);
    CFRelease(cfClock);
    CFRelease(cfUID);
    CFRelease(cfName);
    return status;
}

static OSStatus setDefaultOutput(AudioObjectID dev) {
    AudioObjectPropertyAddress addr = {
        kAudioHardwarePropertyDefaultOutputDevice,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    return AudioObjectSetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, sizeof(AudioObjectID), &dev);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/audio"
)

// Supported reports whether the HAL is available on this platform.
const Supported = true

const stringBufferSize = 512

// HAL implements audio.Registry and audio.Aggregator.
type HAL struct {
	log zerolog.Logger
}

// New returns a HAL client.
func New(log zerolog.Logger) *HAL {
	return &HAL{log: log.With().Str("component", "coreaudio").Logger()}
}

func (h *HAL) InputDevices() ([]audio.Device, error) {
	devices, err := h.SystemDevices()
	if err != nil {
		return nil, err
	}
	result := make([]audio.Device, 0, len(devices))
	for _, d := range devices {
		if d.InputChannels > 0 {
			result = append(result, d)
		}
	}
	return result, nil
}

func (h *HAL) SystemDevices() ([]audio.Device, error) {
	var ids *C.AudioObjectID
	var count C.UInt32
	if status := C.deviceList(&ids, &count); status != 0 {
		return nil, fmt.Errorf("list audio devices: %w", audio.Status(status))
	}
	if count == 0 {
		return nil, nil
	}
	defer C.free(unsafe.Pointer(ids))

	var defaultIn, defaultOut C.AudioObjectID
	C.defaultDevice(C.kAudioHardwarePropertyDefaultInputDevice, &defaultIn)
	C.defaultDevice(C.kAudioHardwarePropertyDefaultOutputDevice, &defaultOut)

	objects := unsafe.Slice(ids, int(count))
	result := make([]audio.Device, 0, len(objects))
	for _, id := range objects {
		uid, err := stringProperty(id, C.kAudioDevicePropertyDeviceUID)
		if err != nil {
			h.log.Debug().Err(err).Uint32("id", uint32(id)).Msg("Skipping device without UID")
			continue
		}
		name, err := stringProperty(id, C.kAudioDevicePropertyDeviceNameCFString)
		if err != nil {
			name = uid
		}

		var in, out C.int
		if status := C.channelCount(id, C.kAudioDevicePropertyScopeInput, &in); status != 0 {
			in = 0
		}
		if status := C.channelCount(id, C.kAudioDevicePropertyScopeOutput, &out); status != 0 {
			out = 0
		}

		result = append(result, audio.Device{
			UID:            uid,
			Name:           name,
			InputChannels:  int(in),
			OutputChannels: int(out),
			Default:        id == defaultIn || id == defaultOut,
		})
	}
	return result, nil
}

// NameForUID returns the display name of the device with the given UID.
// PortAudio addresses devices by name, so capture uses this to resolve.
func (h *HAL) NameForUID(uid string) (string, error) {
	devices, err := h.SystemDevices()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.UID == uid {
			return d.Name, nil
		}
	}
	return "", fmt.Errorf("no device with UID %s: %w", uid, audio.StatusBadDevice)
}

func (h *HAL) CreateAggregate(desc audio.AggregateDescription) (audio.ObjectID, error) {
	if len(desc.SubDevices) != 2 {
		return 0, fmt.Errorf("aggregate needs exactly two sub devices, got %d: %w", len(desc.SubDevices), audio.StatusIllegalOperation)
	}

	name := C.CString(desc.Name)
	defer C.free(unsafe.Pointer(name))
	uid := C.CString(desc.UID)
	defer C.free(unsafe.Pointer(uid))
	clock := C.CString(desc.Master)
	defer C.free(unsafe.Pointer(clock))
	first := C.CString(desc.SubDevices[0])
	defer C.free(unsafe.Pointer(first))
	second := C.CString(desc.SubDevices[1])
	defer C.free(unsafe.Pointer(second))

	stacked := C.int(0)
	if desc.Stacked {
		stacked = 1
	}

	var id C.AudioObjectID
	if status := C.createAggregate(name, uid, clock, first, second, stacked, &id); status != 0 {
		return 0, audio.Status(status)
	}
	return audio.ObjectID(id), nil
}

func (h *HAL) DestroyAggregate(id audio.ObjectID) error {
	if status := C.AudioHardwareDestroyAggregateDevice(C.AudioObjectID(id)); status != 0 {
		return audio.Status(status)
	}
	return nil
}

func (h *HAL) SetDefaultOutput(id audio.ObjectID) error {
	if status := C.setDefaultOutput(C.AudioObjectID(id)); status != 0 {
		return audio.Status(status)
	}
	return nil
}

func stringProperty(id C.AudioObjectID, selector C.AudioObjectPropertySelector) (string, error) {
	buf := (*C.char)(C.malloc(stringBufferSize))
	defer C.free(unsafe.Pointer(buf))
	if status := C.copyStringProperty(id, selector, buf, stringBufferSize); status != 0 {
		return "", audio.Status(status)
	}
	return C.GoString(buf), nil
}
