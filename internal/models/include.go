package models

// Include selects which references a repository read resolves.
type Include struct {
	Driver    bool
	Passenger bool
}

var (
	IncludeNone = Include{}
	IncludeAll  = Include{Driver: true, Passenger: true}
)
