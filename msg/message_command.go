package msg

import "strings"

// NewCommand creates a new request to be sent as a command.
func NewCommand(requestID int32, dbName string, slaveOK bool, cmd interface{}) Request {
	flags := QueryFlags(0)
	if slaveOK {
		flags |= SlaveOK
	}

	return &Query{
		ReqID:              requestID,
		Flags:              flags,
		FullCollectionName: dbName + ".$cmd",
		NumberToReturn:     -1,
		Query:              cmd,
	}
}

// ConvertToMsg rewrites a legacy command query into its OP_MSG form.
// Metadata fields become top-level body fields instead of a $query
// wrapper. Non-command queries are returned unchanged.
func ConvertToMsg(r Request) Request {
	q, ok := r.(*Query)
	if !ok {
		return r
	}

	db := strings.TrimSuffix(q.FullCollectionName, ".$cmd")
	if db == q.FullCollectionName {
		return r
	}

	return &Msg{
		ReqID:    q.ReqID,
		Database: db,
		Command:  q.Query,
		Meta:     q.Meta,
	}
}
