package room

// JoinResult is the outcome of a join attempt.  Values match the
// JoinRoomResult wire enum.
type JoinResult int

const (
	JoinAccepted  JoinResult = 1
	JoinRoomFull  JoinResult = 2
	JoinDisbanded JoinResult = 3
	JoinNotFound  JoinResult = 4
)

func (r JoinResult) String() string {
	switch r {
	case JoinAccepted:
		return "accepted"
	case JoinRoomFull:
		return "room_full"
	case JoinDisbanded:
		return "disbanded"
	case JoinNotFound:
		return "not_found"
	}
	return "unknown"
}

// StartResult is the outcome of a start request.
type StartResult int

const (
	StartOK StartResult = iota + 1
	StartForbidden
	StartNotFound
)

func (r StartResult) String() string {
	switch r {
	case StartOK:
		return "ok"
	case StartForbidden:
		return "forbidden"
	case StartNotFound:
		return "not_found"
	}
	return "unknown"
}

// SubmitResult is the outcome of a result submission.
type SubmitResult int

const (
	SubmitOK SubmitResult = iota + 1
	SubmitNotInRoom
	SubmitAlreadySubmitted
)

func (r SubmitResult) String() string {
	switch r {
	case SubmitOK:
		return "ok"
	case SubmitNotInRoom:
		return "not_in_room"
	case SubmitAlreadySubmitted:
		return "already_submitted"
	}
	return "unknown"
}
