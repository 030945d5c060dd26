package communication

const (
	// ChunkSize is the unit in which a serving peer streams file bytes.
	ChunkSize = 1024 * 1024
	// MaxLineBytes bounds a single request or reply line.
	MaxLineBytes = 64 * 1024
	// MaxFiles bounds the number of names a single JOIN may announce.
	MaxFiles = 4096

	Join   Operation = "JOIN"
	Search Operation = "SEARCH"
	Update Operation = "UPDATE"
	List   Operation = "LIST"

	Download Operation = "DOWNLOAD"

	JoinOK     = "JOIN_OK"
	UpdateOK   = "UPDATE_OK"
	EmptyList  = "[]"
	ErrorToken = "ERROR"
	SizeToken  = "SIZE"

	listSeparator  = ","
	fieldSeparator = " "
)

// Operation is the keyword that starts every request line.
type Operation string

// PeerTracker reports whether op is addressed to the tracker.
func (op Operation) PeerTracker() bool {
	switch op {
	case Join, Search, Update, List:
		return true
	}
	return false
}

// PeerPeer reports whether op is addressed to another peer's server.
func (op Operation) PeerPeer() bool {
	return op == Download
}

// PeerAddress is the listening endpoint that identifies a peer.
type PeerAddress struct {
	Host string
	Port int
}

// Request is one decoded request line. Which fields are set depends on
// Operation:
//
//	JOIN      Address, Files
//	SEARCH    Address, FileName
//	UPDATE    Address, FileName
//	LIST      -
//	DOWNLOAD  FileName
type Request struct {
	Operation Operation
	Address   PeerAddress
	Files     []string
	FileName  string
}
