package domain

// Project is the minimal project view the sync engine needs: its name is
// matched against inbound event titles to assign imported entries.
type Project struct {
	ID       int64
	UserID   int64
	Name     string
	Color    string
	Archived bool
}
