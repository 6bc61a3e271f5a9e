package errorx

type Code int

var Unknown = Error{Code: 100000, Message: "Request failed"}

const (
	// Common codes
	BadRequest        Code = 100001
	NotFound          Code = 100002
	AlreadyExists     Code = 100003
	Internal          Code = 100004
	Unavailable       Code = 100005
	ResourceExhausted Code = 100006

	// Datastore codes
	DatabaseBusy Code = 200001
	Fatal        Code = 200002

	// Draw codes
	DrawAlreadyRunning       Code = 300001
	DrawAlreadyExecuted      Code = 300002
	InsufficientParticipants Code = 300003

	// Broadcast codes
	JobNotCancellable Code = 400001
)
