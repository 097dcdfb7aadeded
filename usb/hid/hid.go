// Package hid encodes the HID report descriptors of the keyboard interfaces.
//
// A descriptor is written as a tree of items; Collection nests its children
// and closes itself. Report.Bytes produces the wire form served for
// GET_DESCRIPTOR(Report).
package hid

import (
	"encoding/binary"
	"fmt"
)

// Data is an encoded descriptor or item payload.
type Data []uint8

// ItemType is the bType field of a short item.
type ItemType uint8

const (
	ItemTypeMain   ItemType = 0
	ItemTypeGlobal ItemType = 1
	ItemTypeLocal  ItemType = 2
)

// Item tags used by the keyboard descriptors.
const (
	tagInput         = 0x8
	tagOutput        = 0x9
	tagCollection    = 0xA
	tagEndCollection = 0xC

	tagUsagePage      = 0x0
	tagLogicalMinimum = 0x1
	tagLogicalMaximum = 0x2
	tagReportSize     = 0x7
	tagReportCount    = 0x9

	tagUsage        = 0x0
	tagUsageMinimum = 0x1
	tagUsageMaximum = 0x2
)

// Item is one node of a report descriptor.
type Item interface {
	appendTo(b []byte) ([]byte, error)
}

// Report is a complete report descriptor.
type Report struct {
	Items []Item
}

// Bytes encodes the report descriptor.
func (r Report) Bytes() (Data, error) {
	return appendItems(nil, r.Items)
}

func appendItems(b []byte, items []Item) ([]byte, error) {
	var err error
	for i, it := range items {
		if it == nil {
			return nil, fmt.Errorf("hid: item %d is nil", i)
		}
		if b, err = it.appendTo(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// short appends a short item. Payloads are 0, 1, 2 or 4 bytes; bSize 3
// encodes four.
func short(b []byte, tag uint8, typ ItemType, payload []byte) ([]byte, error) {
	size := uint8(len(payload))
	switch size {
	case 0, 1, 2:
	case 4:
		size = 3
	default:
		return nil, fmt.Errorf("hid: short item payload of %d bytes", len(payload))
	}
	b = append(b, tag<<4|uint8(typ)<<2|size)
	return append(b, payload...), nil
}

// unsigned returns the shortest little-endian payload holding v.
func unsigned(v uint32) []byte {
	switch {
	case v <= 0xFF:
		return []byte{uint8(v)}
	case v <= 0xFFFF:
		return binary.LittleEndian.AppendUint16(nil, uint16(v))
	}
	return binary.LittleEndian.AppendUint32(nil, v)
}

// signed returns the shortest two's complement payload holding v.
func signed(v int32) []byte {
	switch {
	case v >= -0x80 && v < 0x80:
		return []byte{uint8(int8(v))}
	case v >= -0x8000 && v < 0x8000:
		return binary.LittleEndian.AppendUint16(nil, uint16(int16(v)))
	}
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}
