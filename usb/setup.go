package usb

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Standard request codes (USB 2.0 Table 9-4).
const (
	RequestGetStatus        = 0x00
	RequestClearFeature     = 0x01
	RequestSetFeature       = 0x03
	RequestSetAddress       = 0x05
	RequestGetDescriptor    = 0x06
	RequestGetConfiguration = 0x08
	RequestSetConfiguration = 0x09
	RequestGetInterface     = 0x0A
	RequestSetInterface     = 0x0B
)

// bmRequestType fields.
const (
	RequestDirectionMask = 0x80
	RequestTypeMask      = 0x60
	RequestRecipientMask = 0x1F

	RequestHostToDevice = 0x00
	RequestDeviceToHost = 0x80

	RequestTypeStandard = 0x00
	RequestTypeClass    = 0x20
	RequestTypeVendor   = 0x40

	RecipientDevice    = 0x00
	RecipientInterface = 0x01
	RecipientEndpoint  = 0x02
)

// StringDescType is the string descriptor type.
const StringDescType = 0x03

// SetupPacketSize is the size of a SETUP packet.
const SetupPacketSize = 8

// ErrShortSetup is returned when fewer than eight bytes are parsed.
var ErrShortSetup = errors.New("usb: setup packet too short")

// SetupPacket is an 8-byte control SETUP packet.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// ParseSetupPacket decodes a SETUP packet.
func ParseSetupPacket(data []byte) (SetupPacket, error) {
	if len(data) < SetupPacketSize {
		return SetupPacket{}, ErrShortSetup
	}
	return SetupPacket{
		RequestType: data[0],
		Request:     data[1],
		Value:       binary.LittleEndian.Uint16(data[2:4]),
		Index:       binary.LittleEndian.Uint16(data[4:6]),
		Length:      binary.LittleEndian.Uint16(data[6:8]),
	}, nil
}

// Bytes encodes the packet.
func (s SetupPacket) Bytes() []byte {
	b := make([]byte, SetupPacketSize)
	b[0] = s.RequestType
	b[1] = s.Request
	binary.LittleEndian.PutUint16(b[2:4], s.Value)
	binary.LittleEndian.PutUint16(b[4:6], s.Index)
	binary.LittleEndian.PutUint16(b[6:8], s.Length)
	return b
}

func (s SetupPacket) Type() uint8      { return s.RequestType & RequestTypeMask }
func (s SetupPacket) Recipient() uint8 { return s.RequestType & RequestRecipientMask }
func (s SetupPacket) IsStandard() bool { return s.Type() == RequestTypeStandard }
func (s SetupPacket) IsClass() bool    { return s.Type() == RequestTypeClass }
func (s SetupPacket) IsVendor() bool   { return s.Type() == RequestTypeVendor }

// IsDeviceToHost reports whether the data stage is IN.
func (s SetupPacket) IsDeviceToHost() bool {
	return s.RequestType&RequestDirectionMask == RequestDeviceToHost
}

// DescriptorType returns the descriptor type of a GET_DESCRIPTOR request.
func (s SetupPacket) DescriptorType() uint8 { return uint8(s.Value >> 8) }

// DescriptorIndex returns the descriptor index of a GET_DESCRIPTOR request.
func (s SetupPacket) DescriptorIndex() uint8 { return uint8(s.Value) }

func (s SetupPacket) String() string {
	dir := "OUT"
	if s.IsDeviceToHost() {
		dir = "IN"
	}
	kind := "std"
	switch s.Type() {
	case RequestTypeClass:
		kind = "class"
	case RequestTypeVendor:
		kind = "vendor"
	}
	return fmt.Sprintf("SETUP[%s %s] req=0x%02x val=0x%04x idx=0x%04x len=%d",
		dir, kind, s.Request, s.Value, s.Index, s.Length)
}

// ControlPipe is the endpoint 0 transfer API a request handler completes a
// control transfer through. Exactly one of Tx, Rx or Status starts the
// transfer; Rx completion is reported through done, after which the handler
// calls Status.
type ControlPipe interface {
	// Tx sends data in the IN data stage, followed by the status stage.
	Tx(data []byte)
	// Rx receives the OUT data stage into buf and calls done with the
	// number of bytes received.
	Rx(buf []byte, done func(n int))
	// Status completes the transfer. ok=false stalls the endpoint.
	Status(ok bool)
}
