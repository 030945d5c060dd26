package peer

import (
	"fmt"
	"strings"

	"github.com/fernandafs/P2P-ProjectNapster/util"
)

const (
	join     = "join"
	search   = "search"
	download = "download"
	list     = "list"
	myFiles  = "files"
	help     = "help"
	q        = "q"
	quit     = "quit"

	badArguments        = "Bad arguments"
	badIpPortArgument   = "Bad ip:port argument"
	unrecognizedCommand = "Unrecognized command"

	badTrackerResponse    = "bad tracker response"
	fileDoesNotExist      = "file does not exist"
	fileIsServed          = "file is served"
	joinIsSuccessful      = "join is successful"
	misdirectedRequest    = "request is not a download, ignoring"
	onlyDownloadIsServed  = "peers only serve DOWNLOAD"
	peerOnlineListeningOn = "peer is online and listening"
	readFailed            = "reading request failed"
	serveFailed           = "serving file failed"
	skippingUnshareable   = "skipping file whose name cannot be shared"
	downloadIsSuccessful  = "download is successful"
	updateIsSuccessful    = "update is successful"
	malformedPeerRequest  = "malformed peer request"
	internalServeError    = "internal error"
	connectionClosedEarly = "connection closed before a reply"
)

var helpMessage = strings.Join([]string{
	fmt.Sprintf("\t%s", join),
	fmt.Sprintf("\t%s [filename]", search),
	fmt.Sprintf("\t%s [ip:port of peer] [filename]", download),
	fmt.Sprintf("\t%s", list),
	fmt.Sprintf("\t%s", myFiles),
	fmt.Sprintf("\t%s", help),
	fmt.Sprintf("\t%s, %s", quit, q),
}, "\n")

var helpPrompt = fmt.Sprintf("Type %q to see command usages", help)
var welcomeMessage = fmt.Sprintf("Welcome to %s. You are running this app as a peer.\n%s", util.AppName, helpPrompt)
