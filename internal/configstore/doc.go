// Package configstore persists devsetup preferences in an XDG-compliant
// location. Remembered answers resolve using project scope before global
// scope; absent explicit configuration the caller should prompt the operator.
package configstore
