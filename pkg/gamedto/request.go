package gamedto

// RequestMeta identifies who sent a message and where.
type RequestMeta struct {
	Room       string
	Sender     string
	SenderName string
	DM         bool
}
