package hid

// UsagePage selects the usage page for the following items.
type UsagePage struct{ Page uint16 }

func (u UsagePage) appendTo(b []byte) ([]byte, error) {
	return short(b, tagUsagePage, ItemTypeGlobal, unsigned(uint32(u.Page)))
}

type Usage struct{ Usage uint16 }

func (u Usage) appendTo(b []byte) ([]byte, error) {
	return short(b, tagUsage, ItemTypeLocal, unsigned(uint32(u.Usage)))
}

type UsageMinimum struct{ Min uint16 }

func (u UsageMinimum) appendTo(b []byte) ([]byte, error) {
	return short(b, tagUsageMinimum, ItemTypeLocal, unsigned(uint32(u.Min)))
}

type UsageMaximum struct{ Max uint16 }

func (u UsageMaximum) appendTo(b []byte) ([]byte, error) {
	return short(b, tagUsageMaximum, ItemTypeLocal, unsigned(uint32(u.Max)))
}

type LogicalMinimum struct{ Min int32 }

func (l LogicalMinimum) appendTo(b []byte) ([]byte, error) {
	return short(b, tagLogicalMinimum, ItemTypeGlobal, signed(l.Min))
}

type LogicalMaximum struct{ Max int32 }

func (l LogicalMaximum) appendTo(b []byte) ([]byte, error) {
	return short(b, tagLogicalMaximum, ItemTypeGlobal, signed(l.Max))
}

// ReportSize is the field width in bits.
type ReportSize struct{ Bits uint8 }

func (r ReportSize) appendTo(b []byte) ([]byte, error) {
	return short(b, tagReportSize, ItemTypeGlobal, []byte{r.Bits})
}

// ReportCount is the number of fields.
type ReportCount struct{ Count uint16 }

func (r ReportCount) appendTo(b []byte) ([]byte, error) {
	return short(b, tagReportCount, ItemTypeGlobal, unsigned(uint32(r.Count)))
}

// Input and Output emit the fields described by the preceding global and
// local items.
type (
	Input  struct{ Flags MainFlags }
	Output struct{ Flags MainFlags }
)

func (i Input) appendTo(b []byte) ([]byte, error) {
	return short(b, tagInput, ItemTypeMain, []byte{uint8(i.Flags)})
}

func (o Output) appendTo(b []byte) ([]byte, error) {
	return short(b, tagOutput, ItemTypeMain, []byte{uint8(o.Flags)})
}

// Collection wraps Items in a collection of the given kind.
type Collection struct {
	Kind  CollectionKind
	Items []Item
}

func (c Collection) appendTo(b []byte) ([]byte, error) {
	b, err := short(b, tagCollection, ItemTypeMain, []byte{uint8(c.Kind)})
	if err != nil {
		return nil, err
	}
	if b, err = appendItems(b, c.Items); err != nil {
		return nil, err
	}
	return short(b, tagEndCollection, ItemTypeMain, nil)
}
