package app

import stderrors "errors"

var (
	errorsAs = stderrors.As
	errorsIs = stderrors.Is
)
