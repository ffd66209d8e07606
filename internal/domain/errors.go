package domain

import "errors"

var ErrEmptyMessage = errors.New("broadcast message is empty")
