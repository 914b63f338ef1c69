package grbl

// Realtime command bytes. The firmware acts on these the moment they
// arrive, even mid-line, so they are written to the transport without a
// terminator and never wait for an acknowledgement.
const (
	StatusQuery byte = '?'
	FeedHold    byte = '!'
	CycleResume byte = '~'
	SoftReset   byte = 0x18
	JogCancel   byte = 0x85
)
