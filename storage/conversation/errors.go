package conversation

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrJobNotFound      = Err("job not found")
	ErrUserNotFound     = Err("user not found")
	ErrStaleEvent       = Err("event sequence index already stored")
	ErrUnknownJobEvents = Err("events reference unknown job")
)
