package msg

// Query is a legacy OP_QUERY message sent to the server.
type Query struct {
	ReqID                int32
	Flags                QueryFlags
	FullCollectionName   string
	NumberToSkip         int32
	NumberToReturn       int32
	Query                interface{}
	ReturnFieldsSelector interface{}

	// Meta holds fields riding alongside the command, such as
	// $readPreference. The codec wraps the query as {$query: ...}
	// on the legacy path and hoists them top-level for OP_MSG.
	Meta map[string]interface{}
}

// RequestID gets the request id of the message.
func (m *Query) RequestID() int32 { return m.ReqID }

// QueryFlags are the flags in a Query.
type QueryFlags int32

// QueryFlags constants.
const (
	_ QueryFlags = 1 << iota
	TailableCursor
	SlaveOK
	OplogReplay
	NoCursorTimeout
	AwaitData
	Exhaust
	Partial
)

// AddMeta attaches metadata fields to a command request.
func AddMeta(r Request, meta map[string]interface{}) {
	if len(meta) == 0 {
		return
	}

	if q, ok := r.(*Query); ok {
		if q.Meta == nil {
			q.Meta = make(map[string]interface{}, len(meta))
		}
		for k, v := range meta {
			q.Meta[k] = v
		}
	}
}
