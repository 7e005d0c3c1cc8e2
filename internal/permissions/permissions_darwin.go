//go:build darwin

package permissions

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() Status {
	return Status(C.checkMicrophonePermission())
}

// RequestMicrophone triggers the system microphone permission dialog. The
// answer arrives asynchronously and is not reported back.
func RequestMicrophone() {
	C.requestMicrophonePermission()
}
