package models

import "time"

// Line is one raw line exchanged on an established session
type Line struct {
	Text     string
	Time     time.Time
	Outgoing bool
}
