package mirror

import "errors"

var errNoHardwareEngine = errors.New("mirror: no hardware blit engine linked in")
