package shared

import "errors"

// ErrNotFound is returned by directory lookups for unknown users and
// sessions. Handlers map it to 404.
var ErrNotFound = errors.New("insights: record not found")

// ErrInvalidCredentials covers every login failure the caller may learn
// about: unknown email, wrong password, inactive account, rejected remote
// login. Handlers map it to 401 "Invalid email or password".
var ErrInvalidCredentials = errors.New("insights: invalid email or password")
