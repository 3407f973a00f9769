package window

import (
	"errors"
	"fmt"
)

var (
	errEmptyCoeffs      = errors.New("window coefficients must not be empty")
	errMismatchedLength = errors.New("samples and coefficients must have same length")
	errUnknownType      = errors.New("unknown window type")
)

func validateKaiser(size int, beta float64) error {
	if size <= 0 {
		return fmt.Errorf("window size must be > 0: %d", size)
	}
	if beta < 0 {
		return fmt.Errorf("kaiser beta must be >= 0: %f", beta)
	}
	return nil
}
