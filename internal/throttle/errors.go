package throttle

import "errors"

var ErrClosed = errors.New("throttle: controller closed")
