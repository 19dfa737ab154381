package service

// ClassDirectory is the read side of classes and their rosters.
type ClassDirectory interface {
	classStore
	classMemberStore
}

// Stores groups the persistence ports wired into the services. Both the
// in-memory store and the PostgreSQL repositories satisfy it.
type Stores struct {
	Users   userStore
	Classes ClassDirectory
	Duties  dutyStore
	Events  eventStore
	Assets  assetStore
	Funds   fundStore
}
