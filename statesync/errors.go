package statesync

import "fmt"

// Kind classifies a sync-engine error for the purpose of fetcher/writer
// termination policy: most kinds abort only the current batch, a handful
// are always retried, and persistence failures terminate the writer task.
type Kind int

const (
	KindOther Kind = iota
	KindAlreadyInChain
	KindUnknownBlock
	KindConstructTransaction
	KindCommitStorage
	KindL1Connection
	KindL1EventDecode
	KindL1StateError
	KindTypeError
)

func (k Kind) String() string {
	switch k {
	case KindAlreadyInChain:
		return "AlreadyInChain"
	case KindUnknownBlock:
		return "UnknownBlock"
	case KindConstructTransaction:
		return "ConstructTransaction"
	case KindCommitStorage:
		return "CommitStorage"
	case KindL1Connection:
		return "L1Connection"
	case KindL1EventDecode:
		return "L1EventDecode"
	case KindL1StateError:
		return "L1StateError"
	case KindTypeError:
		return "TypeError"
	default:
		return "Other"
	}
}

// Error is a typed, wrapped error carrying a Kind alongside the usual
// message/cause. Component code constructs these with the New* helpers
// below rather than bare fmt.Errorf, so the Sync Driver can branch on Kind
// without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func NewAlreadyInChain(msg string) error           { return newErr(KindAlreadyInChain, msg, nil) }
func NewUnknownBlock(msg string) error             { return newErr(KindUnknownBlock, msg, nil) }
func NewConstructTransaction(msg string, err error) error {
	return newErr(KindConstructTransaction, msg, err)
}
func NewCommitStorage(msg string, err error) error { return newErr(KindCommitStorage, msg, err) }
func NewL1Connection(msg string, err error) error  { return newErr(KindL1Connection, msg, err) }
func NewL1EventDecode(msg string, err error) error { return newErr(KindL1EventDecode, msg, err) }
func NewL1StateError(msg string) error             { return newErr(KindL1StateError, msg, nil) }
func NewTypeError(msg string) error                { return newErr(KindTypeError, msg, nil) }
func NewOther(msg string, err error) error         { return newErr(KindOther, msg, err) }

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, otherwise KindOther.
func KindOf(err error) Kind {
	var se *Error
	if asError(err, &se) {
		return se.Kind
	}
	return KindOther
}

// asError is a tiny errors.As shim kept local to avoid importing errors
// just for its one call site in KindOf.
func asError(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
