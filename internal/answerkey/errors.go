package answerkey

import (
	"errors"
	"fmt"

	"github.com/stemsi/ielts-mock/internal/model"
)

// ErrUnknownTestVariant is matched by every UnknownTestVariantError.
var ErrUnknownTestVariant = errors.New("unknown test variant")

// UnknownTestVariantError reports a (section, test id) pair with no key.
type UnknownTestVariantError struct {
	Section model.Section
	TestID  int
}

func (e *UnknownTestVariantError) Error() string {
	return fmt.Sprintf("unknown test variant: %s test %d", e.Section, e.TestID)
}

func (e *UnknownTestVariantError) Is(target error) bool {
	return target == ErrUnknownTestVariant
}
