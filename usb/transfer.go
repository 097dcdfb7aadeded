package usb

// Transfer is an in-memory ControlPipe for one control transfer. It plays the
// host side: Out is the payload of the OUT data stage, and In collects what
// the device sends back.
type Transfer struct {
	Setup SetupPacket
	Out   []byte
	In    []byte
	// Completed is set once the device finished the status stage.
	Completed bool
	Stalled   bool
}

// NewTransfer returns a transfer for setup carrying out as its OUT payload.
func NewTransfer(setup SetupPacket, out []byte) *Transfer {
	return &Transfer{Setup: setup, Out: out}
}

func (t *Transfer) Tx(data []byte) {
	t.In = append(t.In[:0], data...)
	t.Completed = true
}

func (t *Transfer) Rx(buf []byte, done func(n int)) {
	n := copy(buf, t.Out)
	if n > int(t.Setup.Length) {
		n = int(t.Setup.Length)
	}
	done(n)
}

func (t *Transfer) Status(ok bool) {
	t.Stalled = !ok
	t.Completed = true
}

var _ ControlPipe = (*Transfer)(nil)
