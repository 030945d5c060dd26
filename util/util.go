package util

import (
	"fmt"
	"net"
	"strconv"
)

const (
	AppName = "p2pFileSharing"
)

// ValidateHostPort checks a listen address. Unlike a peer address, the host
// may be empty and the port may be 0 (pick any free port).
func ValidateHostPort(hostPort string) error {
	_, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return err
	}

	portNumber, err := strconv.Atoi(port)
	if err != nil {
		return err
	}

	if portNumber < 0 || portNumber > 65535 {
		return fmt.Errorf("tcp port out of range")
	}
	return nil
}
