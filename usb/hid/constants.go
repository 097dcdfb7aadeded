package hid

// Common Usage Pages.
// Values per HID Usage Tables.
const (
	UsagePageGenericDesktop uint16 = 0x01
	UsagePageKeyboard       uint16 = 0x07
	UsagePageLEDs           uint16 = 0x08
	UsagePageConsumer       uint16 = 0x0C
)

// Generic Desktop usages.
const (
	UsageKeyboard      uint16 = 0x06
	UsageKeypad        uint16 = 0x07
	UsageSystemControl uint16 = 0x80
)

// Consumer usages.
const (
	UsageConsumerControl uint16 = 0x01
	UsageMute            uint16 = 0xE2
	UsageVolumeUp        uint16 = 0xE9
	UsageVolumeDown      uint16 = 0xEA
	UsagePlayPause       uint16 = 0xCD
)

// System control usages.
const (
	UsagePowerDown uint8 = 0x81
	UsageSleep     uint8 = 0x82
	UsageWakeUp    uint8 = 0x83
)

// CollectionKind values.
type CollectionKind uint8

const (
	CollectionPhysical    CollectionKind = 0x00
	CollectionApplication CollectionKind = 0x01
	CollectionLogical     CollectionKind = 0x02
)

type MainFlags uint8

const (
	MainData  MainFlags = 0x00
	MainConst MainFlags = 0x01

	MainArray MainFlags = 0x00
	MainVar   MainFlags = 0x02

	MainAbs MainFlags = 0x00
	MainRel MainFlags = 0x04

	MainNoWrap MainFlags = 0x00
	MainWrap   MainFlags = 0x08

	MainLinear    MainFlags = 0x00
	MainNonLinear MainFlags = 0x10

	MainPreferredState   MainFlags = 0x00
	MainNoPreferredState MainFlags = 0x20

	MainNoNullPosition MainFlags = 0x00
	MainNullState      MainFlags = 0x40

	MainNonVolatile MainFlags = 0x00
	MainVolatile    MainFlags = 0x80
)
