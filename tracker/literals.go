package tracker

const (
	fileIsFound                      = "file is found"
	fileDoesNotExist                 = "file does not exist"
	handlingRequest                  = "handling request"
	joinIsSuccessful                 = "join is successful"
	listIsSuccessful                 = "look up file list is successful"
	malformedMessage                 = "malformed message"
	messageTooLong                   = "message too long, closing session"
	readFailed                       = "read failed, closing session"
	replyFailed                      = "reply failed, closing session"
	sessionClosed                    = "session closed"
	sessionOpened                    = "session opened"
	trackerOnlineListeningOn         = "tracker is online and listening"
	trackerStopped                   = "tracker stopped"
	unrecognizedPeerTrackerOperation = "unrecognized peer tracker operation"
	updateForUnknownPeer             = "update from a peer that never joined, creating its entry"
	updateIsSuccessful               = "update is successful"
)
