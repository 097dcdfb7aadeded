package dfu

import "fmt"

// DFU 1.1 class requests.
const (
	RequestDetach    = 0x00
	RequestDnload    = 0x01
	RequestUpload    = 0x02
	RequestGetStatus = 0x03
	RequestClrStatus = 0x04
	RequestGetState  = 0x05
	RequestAbort     = 0x06
)

// State is a DFU device state.
type State uint8

const (
	AppIdle State = iota
	AppDetach
	Idle
	DnloadSync
	DnBusy
	DnloadIdle
	ManifestSync
	Manifest
	ManifestWaitReset
	UploadIdle
	Error
)

func (s State) String() string {
	switch s {
	case AppIdle:
		return "appIDLE"
	case AppDetach:
		return "appDETACH"
	case Idle:
		return "dfuIDLE"
	case DnloadSync:
		return "dfuDNLOAD-SYNC"
	case DnBusy:
		return "dfuDNBUSY"
	case DnloadIdle:
		return "dfuDNLOAD-IDLE"
	case ManifestSync:
		return "dfuMANIFEST-SYNC"
	case Manifest:
		return "dfuMANIFEST"
	case ManifestWaitReset:
		return "dfuMANIFEST-WAIT-RESET"
	case UploadIdle:
		return "dfuUPLOAD-IDLE"
	case Error:
		return "dfuERROR"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Status is a DFU status code.
type Status uint8

const (
	StatusOK Status = iota
	StatusErrTarget
	StatusErrFile
	StatusErrWrite
	StatusErrErase
	StatusErrCheckErased
	StatusErrProg
	StatusErrVerify
	StatusErrAddress
	StatusErrNotDone
	StatusErrFirmware
	StatusErrVendor
	StatusErrUSBR
	StatusErrPOR
	StatusErrUnknown
	StatusErrStalledPkt
)

var statusNames = [...]string{
	"OK", "errTARGET", "errFILE", "errWRITE", "errERASE", "errCHECK_ERASED",
	"errPROG", "errVERIFY", "errADDRESS", "errNOTDONE", "errFIRMWARE",
	"errVENDOR", "errUSBR", "errPOR", "errUNKNOWN", "errSTALLEDPKT",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Verified tracks the key check of the current download.
type Verified uint8

const (
	VerifiedUnknown Verified = iota
	VerifiedPending
	VerifiedOK
	VerifiedFailed
)

func (v Verified) String() string {
	switch v {
	case VerifiedUnknown:
		return "unknown"
	case VerifiedPending:
		return "pending"
	case VerifiedOK:
		return "ok"
	case VerifiedFailed:
		return "failed"
	}
	return fmt.Sprintf("Verified(%d)", uint8(v))
}

// Context is the state of the DFU interface.
type Context struct {
	State      State
	Status     Status
	Off        uint32
	Len        int
	Verified   Verified
	AltSetting uint8
	// LastShort is set once a block shorter than the transfer size has
	// been written. Only the last block of a download may be short.
	LastShort bool
}

// StatusReportLen is the length of the GETSTATUS response.
const StatusReportLen = 6

// PollTimeout is the bwPollTimeout reported by GETSTATUS, in milliseconds.
const PollTimeout uint32 = 1000

// StatusReport encodes a GETSTATUS response.
func StatusReport(status Status, state State) []byte {
	return []byte{
		byte(status),
		byte(PollTimeout & 0xFF), byte(PollTimeout >> 8 & 0xFF), byte(PollTimeout >> 16 & 0xFF),
		byte(state),
		0, // iString
	}
}
