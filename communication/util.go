package communication

import (
	"math"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// CalculateNumberOfChunks calculates the number of chunks a file has
func CalculateNumberOfChunks(fileSize int64, chunkSize int) int {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	return int(math.Ceil(float64(fileSize) / float64(chunkSize)))
}

func (a PeerAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParsePeerAddress parses host:port. The port must be numeric and in 1..65535.
func ParsePeerAddress(s string) (PeerAddress, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return PeerAddress{}, malformed("bad ip:port %q", s)
	}
	if host == "" {
		return PeerAddress{}, malformed("missing host in %q", s)
	}

	n, err := strconv.Atoi(port)
	if err != nil {
		return PeerAddress{}, malformed("non-numeric port %q", port)
	}
	if n < 1 || n > math.MaxUint16 {
		return PeerAddress{}, malformed("tcp port %d out of range", n)
	}
	return PeerAddress{Host: host, Port: n}, nil
}

// ValidateFileName checks that name can travel in a request line and names a
// file directly inside a share folder.
func ValidateFileName(name string) error {
	switch {
	case name == "":
		return malformed("empty file name")
	case name == EmptyList:
		return malformed("reserved file name %q", name)
	case name == "." || name == "..":
		return malformed("bad file name %q", name)
	case strings.Contains(name, listSeparator):
		return malformed("file name %q contains %q", name, listSeparator)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return malformed("file name %q is a path", name)
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		return malformed("file name %q contains whitespace", name)
	}
	return nil
}

// EncodeFileList joins names with commas, or returns the empty-list marker.
func EncodeFileList(names []string) string {
	if len(names) == 0 {
		return EmptyList
	}
	return strings.Join(names, listSeparator)
}

// DecodeFileList is the inverse of EncodeFileList. It never returns nil on success.
func DecodeFileList(s string) ([]string, error) {
	if s == EmptyList {
		return []string{}, nil
	}

	names := strings.Split(s, listSeparator)
	if len(names) > MaxFiles {
		return nil, malformed("%d files announced, at most %d allowed", len(names), MaxFiles)
	}
	for _, name := range names {
		if err := ValidateFileName(name); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// EncodePeerList joins addresses with commas, or returns the empty-list marker.
func EncodePeerList(addrs []PeerAddress) string {
	if len(addrs) == 0 {
		return EmptyList
	}

	hostPorts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		hostPorts = append(hostPorts, a.String())
	}
	return strings.Join(hostPorts, listSeparator)
}

// DecodePeerList is the inverse of EncodePeerList. It never returns nil on success.
func DecodePeerList(s string) ([]PeerAddress, error) {
	if s == EmptyList {
		return []PeerAddress{}, nil
	}

	var addrs []PeerAddress
	for _, hp := range strings.Split(s, listSeparator) {
		a, err := ParsePeerAddress(hp)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}
