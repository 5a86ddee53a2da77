package transaction

import "github.com/eideticadb/eidetica/pkg/eerr"

// ErrAlreadyCommitted is returned by any Transaction method called
// after Commit or Drop has already run.
var ErrAlreadyCommitted = eerr.Operation("transaction_commit", "transaction already committed")
