package engine

import (
	"errors"
	"fmt"
)

var errNoVehicles = errors.New("no vehicles in session")

func errWrongOrigin(from Phase) error {
	return fmt.Errorf("not reachable from phase %q", from)
}
