package domain

import "errors"

// ErrEmailTaken is returned by a UserStore when the email is already in use.
var ErrEmailTaken = errors.New("email already registered")
