package http1

// State is what a single Parse call reports back to the session loop. The
// three-way split matters: Pending means "feed me more bytes", Error is a
// hard protocol violation, and the two must never be conflated.
type State uint8

const (
	Pending State = iota + 1
	HeadersCompleted
	Error
)

type parserState uint8

const (
	eEmptyLines parserState = iota + 1
	eEmptyLinesCR
	eMethod
	eRequestLine
	eHeaderKey
	eHeaderFolding
	eHeaderValue
	eBlankLineCR
)
