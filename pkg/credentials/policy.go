package credentials

import "github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"

// Duplicate-name conflict codes. The service answers 409 with the Postgres
// unique-violation code; some deployments send the symbolic one instead.
const (
	CodeUniqueViolation         = "23505"
	CodeDuplicateCredentialName = "duplicate_credential_name"
)

// ConflictAction is what a caller does when a create conflicts.
type ConflictAction int

const (
	// FailOnConflict surfaces the conflict as an error.
	FailOnConflict ConflictAction = iota
	// ProceedToTest treats the existing credential as the one just created.
	ProceedToTest
)

func (a ConflictAction) String() string {
	if a == ProceedToTest {
		return "proceed_to_test"
	}
	return "fail"
}

// ConflictRecoveryPolicy decides how create conflicts are handled.
type ConflictRecoveryPolicy struct {
	OnDuplicateCredentialName ConflictAction
}

// DefaultConflictPolicy lets the setup flow continue past a duplicate name.
var DefaultConflictPolicy = ConflictRecoveryPolicy{OnDuplicateCredentialName: ProceedToTest}

// IsDuplicateName reports a conflict caused by a credential name already in
// use for the integration. Matching is on the error code only.
func IsDuplicateName(err error) bool {
	e, ok := apierr.As(err)
	if !ok || e.Kind != apierr.KindConflict {
		return false
	}
	return e.Code == CodeUniqueViolation || e.Code == CodeDuplicateCredentialName
}

// Recoverable reports whether err should be treated as success under p.
func (p ConflictRecoveryPolicy) Recoverable(err error) bool {
	return p.OnDuplicateCredentialName == ProceedToTest && IsDuplicateName(err)
}
