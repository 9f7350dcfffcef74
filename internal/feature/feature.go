// Package feature holds the synchronizers: each one pairs live views over
// the store with validated write operations and derived aggregates for one
// classroom feature (questions, quiz, hand-raise, attendance, materials,
// activities). Synchronizers receive the store, the session context, and
// the identity manager at construction; none of them reach for ambient
// globals. Every query they issue carries the roomCode filter.
package feature

import (
	"github.com/go-playground/validator/v10"
)

// validate is the shared struct validator for write-path drafts. Validation
// failures are local and user-correctable; they never reach the store.
var validate = validator.New()
