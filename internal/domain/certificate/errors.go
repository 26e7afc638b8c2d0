package certificate

import "errors"

// ErrRender marks every failure that prevented a certificate from being
// produced. Missing or unreadable assets are not render failures.
var ErrRender = errors.New("certificate render failed")

var errNotTrueType = errors.New("not a TrueType font")
