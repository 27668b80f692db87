package act

import "github.com/concheck/sct/ids"

// STMAction is the small transactional sub-language run by Atomically.
// It mirrors Action's CPS shape but is scoped to TVar operations plus
// retry/orElse, matching the glossary's "STM: transactional memory
// sub-language with retry and orElse".
type STMAction interface {
	stmTag()
}

// STMNewTVar allocates a transactional cell local to this transaction's
// write-set (visible to other transactions only once committed).
type STMNewTVar struct {
	Initial Value
	K       func(ids.TVarID) STMAction
}

func (*STMNewTVar) stmTag() {}

// STMReadTVar reads a TVar, adding it to the transaction's read-set.
type STMReadTVar struct {
	TVar ids.TVarID
	K    func(Value) STMAction
}

func (*STMReadTVar) stmTag() {}

// STMWriteTVar writes a TVar, adding it to the transaction's write-set.
type STMWriteTVar struct {
	TVar  ids.TVarID
	Value Value
	K     func() STMAction
}

func (*STMWriteTVar) stmTag() {}

// STMRetry aborts the transaction, blocking the thread until any TVar in
// its accumulated read-set changes.
type STMRetry struct{}

func (*STMRetry) stmTag() {}

// STMOrElse runs First; if First retries, its writes are rolled back and
// Second is run instead, from the state at OrElse entry. If Second also
// retries, the transaction waits on the reads of both branches.
type STMOrElse struct {
	First  STMAction
	Second STMAction
}

func (*STMOrElse) stmTag() {}

// STMThrow raises an exception inside the transaction, aborting it
// without committing any writes.
type STMThrow struct {
	Err Value
}

func (*STMThrow) stmTag() {}

// STMReturn completes the transaction successfully with Value.
type STMReturn struct {
	Value Value
}

func (*STMReturn) stmTag() {}
